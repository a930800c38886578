// ABOUTME: Inspects an MP3 file the way the progressive player sees it
// ABOUTME: Prints stream metadata, the frame count and the frame-counted duration
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Sendspin/phonograph-go/pkg/audio/mpeg"
)

var chunkKB = flag.Int("chunk-kb", 64, "Segment size in KiB used to report the segment count")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log.SetFlags(0)

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("failed to read file: %v", err)
	}

	ref, meta, offset, ok := mpeg.FindReference(data)
	if !ok {
		log.Fatalf("no MPEG frame header found in %d bytes", len(data))
	}

	frames := mpeg.CountFrames(data, offset, ref, meta)
	duration := mpeg.FrameDuration(frames, meta.SampleRate)

	chunk := *chunkKB * 1024
	segments := 0
	if chunk > 0 {
		segments = (len(data) + chunk - 1) / chunk
	}

	fmt.Printf("File:        %s\n", flag.Arg(0))
	fmt.Printf("Size:        %d bytes\n", len(data))
	fmt.Printf("Format:      %s\n", meta)
	fmt.Printf("Channels:    %d\n", meta.ChannelMode.Channels())
	fmt.Printf("First frame: byte %d\n", offset)
	fmt.Printf("Frames:      %d\n", frames)
	fmt.Printf("Duration:    %.3fs\n", duration)
	fmt.Printf("Segments:    ~%d at %d KiB\n", segments, *chunkKB)
}
