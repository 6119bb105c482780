// Command reader drives a Protocol V6 device (real serial hardware or
// the simulator over TCP), writes its sample stream into the shared
// ring, and relays everything else to a local IPC consumer.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/librescoot/daq-bridge/internal/ipc"
	"github.com/librescoot/daq-bridge/internal/reader"
	"github.com/librescoot/daq-bridge/internal/ring"
	"github.com/librescoot/daq-bridge/internal/transport"
)

const (
	defaultBaud      = 115200
	defaultTCPHost   = "127.0.0.1"
	defaultTCPPort   = "9001"
	defaultIPCSocket = "/tmp/data_reader_ipc.sock"
)

// comDevicePath maps a Windows-style COM index (as named in spec §6)
// onto the Linux device this reader actually opens. COM7 is the
// documented default, so N=7 lands on ttyUSB6; any other 1..999 slides
// the same way.
func comDevicePath(n int) string {
	return fmt.Sprintf("/dev/ttyUSB%d", n-1)
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	kind, target, err := parseArgs(os.Args[1:])
	if err != nil {
		if err == errHelpRequested {
			printHelp()
			os.Exit(0)
		}
		log.Printf("argument error: %v", err)
		printHelp()
		os.Exit(1)
	}

	tr, err := openTransport(kind, target)
	if err != nil {
		log.Printf("failed to open transport: %v", err)
		os.Exit(1)
	}
	log.Printf("connected via %s to %s", kind, target)

	seg, err := ring.OpenSegment(ring.DefaultSegmentName)
	if err != nil {
		log.Printf("failed to open shared ring %q: %v", ring.DefaultSegmentName, err)
		os.Exit(1)
	}
	defer seg.Close()

	r, err := ring.Attach(seg.Bytes(), true)
	if err != nil {
		log.Printf("failed to attach shared ring: %v", err)
		os.Exit(1)
	}
	log.Printf("shared ring %q attached", ring.DefaultSegmentName)

	ipcChan, err := ipc.Listen(defaultIPCSocket)
	if err != nil {
		log.Printf("failed to listen on IPC endpoint %q: %v", defaultIPCSocket, err)
		os.Exit(1)
	}
	log.Printf("IPC endpoint listening at %s", defaultIPCSocket)

	orch := reader.New(tr, kind, target, r, ipcChan)
	orch.SetReconnector(openTransport)

	go orch.Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("shutting down...")
	orch.Stop()
}

func openTransport(kind transport.Kind, target string) (transport.Transport, error) {
	switch kind {
	case transport.KindSerial:
		return transport.OpenSerial(target, defaultBaud)
	case transport.KindTCP:
		return transport.DialTCP(target)
	default:
		return nil, fmt.Errorf("reader: unknown transport kind %q", kind)
	}
}

var errHelpRequested = fmt.Errorf("help requested")

// parseArgs implements spec §6's reader CLI: `<prog>` (serial COM7
// default), `<prog> N` (serial COMN, N in 1..999), `<prog> -s [host
// [port]]` (TCP, default 127.0.0.1:9001), `<prog> -h` (help).
func parseArgs(args []string) (transport.Kind, string, error) {
	if len(args) == 0 {
		return transport.KindSerial, comDevicePath(7), nil
	}

	switch args[0] {
	case "-h", "--help", "-help":
		return "", "", errHelpRequested

	case "-s", "--s":
		host := defaultTCPHost
		port := defaultTCPPort
		if len(args) > 1 {
			host = args[1]
		}
		if len(args) > 2 {
			port = args[2]
		}
		if len(args) > 3 {
			return "", "", fmt.Errorf("too many arguments after -s")
		}
		return transport.KindTCP, host + ":" + port, nil

	default:
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > 999 {
			return "", "", fmt.Errorf("expected COM index 1..999, -s, or -h, got %q", args[0])
		}
		if len(args) > 1 {
			return "", "", fmt.Errorf("too many arguments after COM index")
		}
		return transport.KindSerial, comDevicePath(n), nil
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `usage:
  reader                 serial, default device (COM7 equivalent)
  reader N                serial, COM<N> equivalent, N in 1..999
  reader -s [host [port]] TCP, default 127.0.0.1:9001
  reader -h               this help
`)
}
