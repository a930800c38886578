// ABOUTME: Command-line watcher for phonograph event monitors
// ABOUTME: Finds a player over mDNS (or by address) and prints its clip events
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sendspin/phonograph-go/internal/client"
	"github.com/Sendspin/phonograph-go/internal/discovery"
	"github.com/Sendspin/phonograph-go/internal/monitor"
)

var (
	addr     = flag.String("addr", "", "Monitor address host:port (skip mDNS)")
	timeout  = flag.Duration("timeout", 10*time.Second, "How long to browse for a monitor")
	progress = flag.Bool("progress", false, "Print progress events")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	target := *addr
	path := monitor.DefaultPath
	if target == "" {
		log.Printf("Browsing for monitors...")
		disc := discovery.NewManager(discovery.Config{})
		if err := disc.Browse(); err != nil {
			log.Fatalf("Failed to browse: %v", err)
		}

		select {
		case peer := <-disc.Peers():
			target = net.JoinHostPort(peer.Host, strconv.Itoa(peer.Port))
			if peer.Path != "" {
				path = peer.Path
			}
			log.Printf("Found %s at %s", peer.Name, peer.Address())
		case <-time.After(*timeout):
			log.Fatalf("No monitor found after %v", *timeout)
		}
		disc.Stop()
	}

	c := client.NewClient(client.Config{Addr: target, Path: path})
	if err := c.Connect(); err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer c.Close()

	if err := c.RequestStatus(); err != nil {
		log.Printf("Status request failed: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case ev := <-c.Events:
			if ev.Event == "progress" && !*progress {
				continue
			}
			fmt.Println(formatEvent(ev))
		case st := <-c.Statuses:
			fmt.Printf("[%s] %s %s %.1fs/%.1fs vol=%.2f loop=%v buffered=%d/%d segments=%d/%d\n",
				short(st.ClipID), st.URL, st.State, st.CurrentTime, st.Duration,
				st.Volume, st.Loop, st.Buffered, st.Length, st.Ready, st.Segments)
		case <-c.Done():
			log.Printf("Monitor disconnected")
			return
		case <-sigChan:
			return
		}
	}
}

func formatEvent(ev monitor.Event) string {
	line := fmt.Sprintf("[%s] %s", short(ev.ClipID), ev.Event)
	switch {
	case ev.CurrentTime != nil:
		line += fmt.Sprintf(" t=%.3fs", *ev.CurrentTime)
	case ev.Fraction != nil:
		line += fmt.Sprintf(" %.0f%%", *ev.Fraction*100)
	case ev.Error != "":
		line += " " + ev.Error
	}
	return line
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
