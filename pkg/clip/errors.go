// ABOUTME: Coded errors surfaced by clips
// ABOUTME: Load, decode and playback failures carry a code and the clip URL
package clip

import (
	"errors"
	"fmt"
)

// Code classifies a clip failure
type Code string

const (
	CodeCouldNotLoad          Code = "COULD_NOT_LOAD"
	CodeCouldNotDecode        Code = "COULD_NOT_DECODE"
	CodeCouldNotStartPlayback Code = "COULD_NOT_START_PLAYBACK"
	CodeCouldNotCreateSource  Code = "COULD_NOT_CREATE_SOURCE"
	CodeClipDisposed          Code = "CLIP_WAS_DISPOSED"
)

// Error is a failure delivered through loaderror/playbackerror events and
// through Play and Buffer results.
type Error struct {
	Code    Code
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.URL != "" {
		return fmt.Sprintf("%s (%s)", msg, e.URL)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is
var (
	ErrCouldNotLoad          = &Error{Code: CodeCouldNotLoad}
	ErrCouldNotDecode        = &Error{Code: CodeCouldNotDecode}
	ErrCouldNotStartPlayback = &Error{Code: CodeCouldNotStartPlayback}
	ErrCouldNotCreateSource  = &Error{Code: CodeCouldNotCreateSource}
	ErrDisposed              = &Error{Code: CodeClipDisposed}
)

// ErrSegmentNotReady is returned when a playback source is requested from a
// segment that has not finished decoding or has no known successor. It
// indicates a scheduling defect and is never retried.
var ErrSegmentNotReady = errors.New("clip: segment was not ready in time for playback")

func newError(code Code, url, message string, cause error) *Error {
	return &Error{Code: code, URL: url, Message: message, Cause: cause}
}

// asError wraps err with code unless it already carries one
func asError(code Code, url string, err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		if ce.URL == "" {
			ce.URL = url
		}
		return ce
	}
	return newError(code, url, "", err)
}
