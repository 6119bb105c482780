// Command simulator impersonates the acquisition device described by
// Protocol V6: it accepts one TCP client at a time, answers the
// command set (C3), and streams synthesized or replayed samples (C4).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/librescoot/daq-bridge/internal/device"
	"github.com/librescoot/daq-bridge/internal/transport"
)

const simulatorVersion = "daq-bridge simulator, protocol v6"

func main() {
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	port := fs.Int("port", 9001, "TCP port to listen on")
	csvFile := fs.String("csv", "", "CSV file of sample rows to replay instead of synthesizing a waveform")
	help := fs.Bool("help", false, "print usage and exit")
	version := fs.Bool("version", false, "print version and exit")
	info := fs.Bool("info", false, "print device info and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if *help {
		fs.Usage()
		os.Exit(0)
	}
	if *version {
		fmt.Println(simulatorVersion)
		os.Exit(0)
	}
	if *info {
		printInfo()
		os.Exit(0)
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting DAQ simulator")

	var sampler device.SampleSource
	if *csvFile != "" {
		rows, err := loadCSV(*csvFile)
		if err != nil {
			log.Printf("failed to load CSV %q: %v", *csvFile, err)
			os.Exit(1)
		}
		sampler = device.NewCSVSource(rows)
		log.Printf("replaying %d CSV rows from %s", len(rows), *csvFile)
	} else {
		sampler = device.NewSineSource(time.Now().UnixNano())
		log.Printf("synthesizing sine+noise waveforms")
	}

	addr := fmt.Sprintf(":%d", *port)
	ln, err := transport.ListenTCP(addr)
	if err != nil {
		log.Printf("failed to listen on %s: %v", addr, err)
		os.Exit(1)
	}
	log.Printf("listening on %s", addr)

	for {
		tr, err := transport.AcceptTCP(ln)
		if err != nil {
			log.Printf("accept failed: %v", err)
			continue
		}
		log.Printf("device session accepted")
		runSession(tr, sampler)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "usage: simulator [--port P] [--csv FILE] [--help|--version|--info]\n\n")
	fs.PrintDefaults()
}

func printInfo() {
	fmt.Printf("unique id format: 64-bit, device default firmware 0x0001\n")
	fmt.Printf("channels: 0=Voltage, 1=Current, max rate 100000 Hz, formats int16|int32\n")
}
