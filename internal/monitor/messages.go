// ABOUTME: Monitor message type definitions
// ABOUTME: JSON envelopes for clip events and status snapshots
package monitor

// Message is the top-level wrapper for all monitor messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Message types
const (
	TypeHello     = "monitor/hello"
	TypeEvent     = "clip/event"
	TypeStatus    = "clip/status"
	TypeStatusReq = "monitor/status"
)

// Hello is sent to every monitor client after it connects
type Hello struct {
	MonitorID string   `json:"monitor_id"`
	ClientID  string   `json:"client_id"`
	Product   string   `json:"product"`
	Version   string   `json:"version"`
	Clips     []string `json:"clips"`
}

// Event mirrors one clip event
type Event struct {
	ClipID string `json:"clip_id"`
	Event  string `json:"event"`

	// progress
	CurrentTime *float64 `json:"current_time,omitempty"`
	Drift       *float64 `json:"drift,omitempty"`

	// loadprogress
	Fraction *float64 `json:"fraction,omitempty"`
	Loaded   *int64   `json:"loaded,omitempty"`
	Total    *int64   `json:"total,omitempty"`

	// loaderror, playbackerror
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Status is a clip snapshot
type Status struct {
	ClipID      string  `json:"clip_id"`
	URL         string  `json:"url"`
	State       string  `json:"state"` // "playing", "paused" or "ended"
	Loop        bool    `json:"loop"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration,omitempty"`
	Volume      float64 `json:"volume"`
	Buffered    int64   `json:"buffered"`
	Length      int64   `json:"length"`
	Segments    int     `json:"segments"`
	Ready       int     `json:"ready"`
	SyncQuality string  `json:"sync_quality"`
	DriftPPM    float64 `json:"drift_ppm"`
}
