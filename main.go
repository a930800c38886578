// ABOUTME: Entry point for the Phonograph progressive MP3 player
// ABOUTME: Parses CLI flags and starts the player application
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sendspin/phonograph-go/internal/app"
	"github.com/Sendspin/phonograph-go/internal/version"
)

var (
	loop        = flag.Bool("loop", false, "Loop playback")
	volume      = flag.Int("volume", 100, "Initial volume (0-100)")
	chunkKB     = flag.Int("chunk-kb", 64, "Segment size in KiB")
	sampleRate  = flag.Int("rate", 44100, "Output sample rate")
	monitorPort = flag.Int("monitor", 0, "Port for the WebSocket event monitor (0 disables)")
	useMDNS     = flag.Bool("mdns", false, "Advertise the monitor over mDNS")
	name        = flag.String("name", "", "Friendly name for mDNS (default: hostname-phonograph)")
	logFile     = flag.String("log-file", "phonograph.log", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <url-or-path>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	source := flag.Arg(0)

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s", version.String())

	player, err := app.New(app.Config{
		URL:         source,
		Loop:        *loop,
		Volume:      *volume,
		ChunkKB:     *chunkKB,
		SampleRate:  *sampleRate,
		MonitorPort: *monitorPort,
		MDNS:        *useMDNS,
		Name:        *name,
		UseTUI:      useTUI,
	})
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := player.Run(ctx); err != nil {
		log.Printf("Player error: %v", err)
		if useTUI {
			fmt.Fprintf(os.Stderr, "phonograph: %v\n", err)
		}
		stop()
		_ = f.Close()
		os.Exit(1)
	}

	log.Printf("Player stopped")
}
