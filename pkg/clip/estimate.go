// ABOUTME: Buffering sufficiency estimate for canplaythrough
// ABOUTME: Compares buffered audio against the projected remaining download time
package clip

import "time"

// downloadMargin inflates the projected download time against bitrate variance
const downloadMargin = 1.5

// bufferEstimate is a snapshot of load progress
type bufferEstimate struct {
	// BufferedDuration and BufferedBytes cover the leading segments whose
	// duration is known
	BufferedDuration float64
	BufferedBytes    int64

	// Length is the total content length; Downloaded the bytes received
	Length     int64
	Downloaded int64
	Elapsed    time.Duration
}

// canPlayThrough reports whether buffered audio outlasts the projected
// time to finish the download
func (e bufferEstimate) canPlayThrough() bool {
	if e.Length <= 0 || e.BufferedBytes <= 0 || e.BufferedDuration <= 0 {
		return false
	}

	scale := float64(e.Length) / float64(e.BufferedBytes)
	estimatedDuration := e.BufferedDuration * scale

	elapsedMs := float64(e.Elapsed) / float64(time.Millisecond)
	if elapsedMs <= 0 {
		elapsedMs = 1
	}

	bitrate := float64(e.Downloaded) / elapsedMs
	timeToDownload := downloadMargin * float64(e.Length-e.Downloaded) / bitrate / 1e3

	available := float64(e.BufferedBytes) / float64(e.Length) * estimatedDuration
	return available > timeToDownload
}

// estimateSegments sums the known-duration prefix of segs
func estimateSegments(segs []*Segment) (duration float64, bytes int64) {
	for _, seg := range segs {
		d, ok := seg.Duration()
		if !ok {
			break
		}
		duration += d
		bytes += int64(seg.Len())
	}
	return duration, bytes
}
