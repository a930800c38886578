// ABOUTME: Local file byte-stream loader
// ABOUTME: Streams a file from disk through the same callbacks as HTTP
package stream

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileLoader streams a local file
type FileLoader struct {
	readLoader
	path string
}

// NewFileLoader creates a loader for path
func NewFileLoader(path string, readSize int) *FileLoader {
	l := &FileLoader{path: path}
	l.readSize = readSize
	l.open = func(ctx context.Context) (io.ReadCloser, int64, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		return f, info.Size(), nil
	}
	return l
}

// Path returns the loaded file path
func (l *FileLoader) Path() string {
	return l.path
}

// New picks an HTTP or file loader for location
func New(location string, config HTTPConfig) Loader {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPLoader(location, config)
	}
	return NewFileLoader(strings.TrimPrefix(location, "file://"), config.ReadSize)
}
