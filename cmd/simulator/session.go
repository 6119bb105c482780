package main

import (
	"encoding/csv"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/librescoot/daq-bridge/internal/device"
	"github.com/librescoot/daq-bridge/internal/protocol"
	"github.com/librescoot/daq-bridge/internal/transport"
)

// runSession owns one connected client end to end: a single send path
// used by both the command dispatcher and the generator tick (spec
// §9's "two producers sharing one write-side without coordination is
// a race"), called only from this goroutine's select loop so the
// device value never needs a mutex.
func runSession(tr transport.Transport, sampler device.SampleSource) {
	defer tr.Close()

	trig := device.NewTriggerScheduler(rand.Int63())
	d := device.NewDevice(rand.Uint64(), 0x0001, sampler, trig, rand.Int63())
	gen := device.NewGenerator(d)

	chunks := make(chan []byte, 16)
	readErrs := make(chan error, 1)
	go readLoop(tr, chunks, readErrs)

	scanner := protocol.NewScanner()
	ticker := time.NewTicker(device.DataSendInterval)
	defer ticker.Stop()

	send := func(out device.Outbound) {
		frame, err := protocol.BuildFrame(out.Cmd, d.NextSeq(), out.Payload)
		if err != nil {
			log.Printf("session: failed to build outbound frame: %v", err)
			return
		}
		if _, err := tr.Write(frame); err != nil {
			log.Printf("session: write failed: %v", err)
		}
	}

	for {
		select {
		case err := <-readErrs:
			log.Printf("session: read error, closing: %v", err)
			return

		case data := <-chunks:
			scanner.Feed(data)
			scanner.TryExtract(func(f protocol.Frame) {
				for _, out := range device.Dispatch(d, f.Cmd, f.Payload, time.Now()) {
					send(out)
				}
			})

		case now := <-ticker.C:
			for _, out := range gen.Tick(now) {
				send(out)
			}
		}
	}
}

func readLoop(tr transport.Transport, chunks chan<- []byte, errs chan<- error) {
	buf := make([]byte, 4096)
	for {
		n, err := tr.Read(buf)
		if err != nil {
			errs <- err
			return
		}
		if n == 0 {
			continue
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		chunks <- cp
	}
}

// loadCSV reads a plain comma-separated file of one row per sample
// tick, each column a channel's floating-point value, into rows fit
// for device.NewCSVSource. CSV parsing is explicitly out of scope for
// the core (spec §1), so this stays a thin stdlib reader rather than
// a pack-grounded component.
func loadCSV(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	rows := make([][]float64, 0, len(records))
	for _, rec := range records {
		row := make([]float64, len(rec))
		for i, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
