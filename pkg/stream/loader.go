// ABOUTME: Byte-stream loader interface and shared read loop
// ABOUTME: Delivers chunks in order with progress, completion and error callbacks
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// DefaultReadSize is the chunk size delivered to OnData
const DefaultReadSize = 32 * 1024

// Handlers receive the events of one load. Any handler may be nil.
type Handlers struct {
	// OnProgress reports loaded/total bytes. fraction is 0 while total is unknown.
	OnProgress func(fraction float64, loaded, total int64)
	// OnData delivers the next chunk. The slice is owned by the receiver.
	OnData func(data []byte)
	// OnLoad fires once after the final chunk
	OnLoad func()
	// OnError fires instead of OnLoad when the load fails
	OnError func(err error)
}

// Loader fetches a byte stream asynchronously.
// Load starts a fresh load; Cancel stops delivery of any further callbacks.
type Loader interface {
	Load(h Handlers)
	Cancel()
}

// opener returns the stream body and its total length (0 if unknown)
type opener func(ctx context.Context) (io.ReadCloser, int64, error)

// readLoader runs an opener on a goroutine and streams its body
type readLoader struct {
	mu       sync.Mutex
	open     opener
	readSize int
	cancel   context.CancelFunc
}

func (l *readLoader) Load(h Handlers) {
	ctx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.cancel = cancel
	l.mu.Unlock()

	go l.run(ctx, h)
}

func (l *readLoader) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

func (l *readLoader) run(ctx context.Context, h Handlers) {
	fail := func(err error) {
		if ctx.Err() != nil {
			return
		}
		if h.OnError != nil {
			h.OnError(err)
		}
	}

	body, total, err := l.open(ctx)
	if err != nil {
		fail(err)
		return
	}
	defer body.Close()

	var loaded int64
	progress := func(fraction float64, loaded, total int64) {
		if ctx.Err() == nil && h.OnProgress != nil {
			h.OnProgress(fraction, loaded, total)
		}
	}
	fraction := func() float64 {
		if total <= 0 {
			return 0
		}
		return float64(loaded) / float64(total)
	}

	progress(fraction(), loaded, total)

	size := l.readSize
	if size <= 0 {
		size = DefaultReadSize
	}

	for {
		if ctx.Err() != nil {
			return
		}

		buf := make([]byte, size)
		n, err := body.Read(buf)
		if n > 0 {
			loaded += int64(n)
			if ctx.Err() != nil {
				return
			}
			if h.OnData != nil {
				h.OnData(buf[:n])
			}
			progress(fraction(), loaded, total)
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fail(fmt.Errorf("read failed after %d bytes: %w", loaded, err))
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	progress(1, loaded, loaded)
	if h.OnLoad != nil {
		h.OnLoad()
	}
}
