// ABOUTME: Frame counting over raw MPEG byte ranges
// ABOUTME: Derives exact durations from header counts rather than decoder output
package mpeg

// CountFrames counts frame headers matching ref from offset from to the end
// of b. On a header the scan jumps by the frame length (at least HeaderSize);
// otherwise it slides forward one byte.
func CountFrames(b []byte, from int, ref ReferenceHeader, meta Metadata) int {
	if from < 0 {
		from = 0
	}

	count := 0
	for i := from; i < len(b); {
		if !IsFrameHeader(b, i, ref) {
			i++
			continue
		}
		count++

		length, err := FrameLength(b, i, meta)
		if err != nil || length < HeaderSize {
			length = HeaderSize
		}
		i += length
	}
	return count
}

// FrameDuration converts a frame count to seconds
func FrameDuration(frames, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(frames) * SamplesPerFrame / float64(sampleRate)
}
