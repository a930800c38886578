// ABOUTME: Wall-clock vs output-clock tracking with drift compensation
// ABOUTME: Tracks both offset AND drift between the system clock and an audio device clock
package sync

import (
	"log"
	"sync"
	"time"
)

// ClockSync estimates how an output clock relates to the wall clock.
// Offsets are in microseconds (output - wall); drift is dimensionless (μs/μs).
type ClockSync struct {
	mu             sync.RWMutex
	offset         int64   // Current offset in microseconds (output - wall)
	drift          float64 // Output clock drift rate relative to wall time
	rawOffset      int64   // Latest raw offset measurement
	residual       int64   // Latest prediction error
	quality        Quality
	lastSync       time.Time
	lastSyncMicros int64 // Wall time (μs) when offset/drift were last updated
	sampleCount    int
	smoothingRate  float64
	maxResidual    int64
}

// Quality represents tracking quality
type Quality int

const (
	QualityGood Quality = iota
	QualityDegraded
	QualityLost
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	default:
		return "lost"
	}
}

// Stats is a snapshot of the tracker state
type Stats struct {
	Offset   time.Duration
	Drift    float64
	Residual time.Duration
	Quality  Quality
	Samples  int
}

// NewClockSync creates a new tracker
func NewClockSync() *ClockSync {
	return &ClockSync{
		smoothingRate: 0.1, // 10% weight to new samples
		quality:       QualityLost,
		drift:         0.0, // Start assuming no drift
		maxResidual:   50000,
	}
}

// Observe records one paired reading of the wall clock and the output clock
func (cs *ClockSync) Observe(wall time.Time, outputSeconds float64) {
	wallMicros := wall.UnixMicro()
	measuredOffset := int64(outputSeconds*1e6) - wallMicros

	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.rawOffset = measuredOffset
	cs.lastSync = wall

	// First sample: initialize offset, no drift yet
	if cs.sampleCount == 0 {
		cs.offset = measuredOffset
		cs.lastSyncMicros = wallMicros
		cs.sampleCount++
		cs.quality = QualityGood
		return
	}

	dt := float64(wallMicros - cs.lastSyncMicros)
	if dt <= 0 {
		return
	}

	// Second sample: calculate initial drift
	if cs.sampleCount == 1 {
		cs.drift = float64(measuredOffset-cs.offset) / dt
		cs.offset = measuredOffset
		cs.lastSyncMicros = wallMicros
		cs.sampleCount++
		return
	}

	// Predict what offset should be based on drift
	predictedOffset := cs.offset + int64(cs.drift*dt)
	residual := measuredOffset - predictedOffset
	cs.residual = residual

	// A jump this large means the output clock stalled or restarted
	if residual > cs.maxResidual || residual < -cs.maxResidual {
		log.Printf("Output clock jumped by %dμs, resetting drift estimate", residual)
		cs.offset = measuredOffset
		cs.drift = 0
		cs.lastSyncMicros = wallMicros
		cs.sampleCount = 1
		cs.quality = QualityDegraded
		return
	}

	// Fixed-gain Kalman update
	cs.offset = predictedOffset + int64(cs.smoothingRate*float64(residual))
	cs.drift = cs.drift + cs.smoothingRate*float64(residual)/dt

	cs.lastSyncMicros = wallMicros
	cs.sampleCount++

	if residual < cs.maxResidual/5 && residual > -cs.maxResidual/5 {
		cs.quality = QualityGood
	} else {
		cs.quality = QualityDegraded
	}
}

// Offset returns the current offset
func (cs *ClockSync) Offset() time.Duration {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return time.Duration(cs.offset) * time.Microsecond
}

// Drift returns the current drift rate
func (cs *ClockSync) Drift() float64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.drift
}

// GetStats returns tracking statistics
func (cs *ClockSync) GetStats() Stats {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return Stats{
		Offset:   time.Duration(cs.offset) * time.Microsecond,
		Drift:    cs.drift,
		Residual: time.Duration(cs.residual) * time.Microsecond,
		Quality:  cs.quality,
		Samples:  cs.sampleCount,
	}
}

// CheckQuality marks tracking lost when no sample arrived for a while
func (cs *ClockSync) CheckQuality(now time.Time) Quality {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.sampleCount > 0 && now.Sub(cs.lastSync) > 5*time.Second {
		cs.quality = QualityLost
	}

	return cs.quality
}

// OutputAt predicts the output clock at a wall time
func (cs *ClockSync) OutputAt(wall time.Time) float64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	wallMicros := wall.UnixMicro()
	if cs.sampleCount == 0 {
		return 0
	}

	dt := wallMicros - cs.lastSyncMicros
	return float64(wallMicros+cs.offset+int64(cs.drift*float64(dt))) / 1e6
}

// Reset forgets all samples
func (cs *ClockSync) Reset() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.offset = 0
	cs.drift = 0
	cs.rawOffset = 0
	cs.residual = 0
	cs.sampleCount = 0
	cs.quality = QualityLost
}
