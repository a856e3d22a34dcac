package events

// Event type constants for kelindar/event.
const (
	TypeDetection uint32 = iota + 1
	TypeCycleDropped
	TypeSessionState
	TypeDeviceChange
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Score is one class confidence from a completed inference.
type Score struct {
	ClassID    int     `json:"class_id" example:"1" doc:"Model output class index"`
	Label      string  `json:"label,omitempty" example:"person" doc:"Class label, empty when no label file is loaded"`
	Confidence float32 `json:"confidence" example:"0.82" doc:"Dequantized confidence"`
}

// DetectionEvent is published after each successfully classified frame.
type DetectionEvent struct {
	Top         Score   `json:"top" doc:"Highest-confidence class"`
	Scores      []Score `json:"scores" doc:"All class scores in ascending class order"`
	FrameWidth  int     `json:"frame_width" example:"640" doc:"Source frame width in pixels"`
	FrameHeight int     `json:"frame_height" example:"480" doc:"Source frame height in pixels"`
	InferenceMS float64 `json:"inference_ms" example:"14.2" doc:"Model invoke duration in milliseconds"`
	Timestamp   string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Completion timestamp"`
}

// Type returns the event type identifier for DetectionEvent.
func (e DetectionEvent) Type() uint32 { return TypeDetection }

// CycleDroppedEvent is published when one capture cycle is abandoned
// without producing a detection. Streaming continues afterwards.
type CycleDroppedEvent struct {
	Stage     string `json:"stage" example:"normalize" doc:"Pipeline stage that dropped the cycle: capture, map, normalize, inference"`
	Reason    string `json:"reason" example:"decode_failed" doc:"Short machine-readable reason"`
	Error     string `json:"error,omitempty" doc:"Detailed error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Drop timestamp"`
}

// Type returns the event type identifier for CycleDroppedEvent.
func (e CycleDroppedEvent) Type() uint32 { return TypeCycleDropped }

// SessionStateEvent reports capture session lifecycle transitions.
type SessionStateEvent struct {
	State      string `json:"state" example:"streaming" doc:"New session state"`
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for SessionStateEvent.
func (e SessionStateEvent) Type() uint32 { return TypeSessionState }

// DeviceChangeEvent represents device hotplug events.
type DeviceChangeEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Action     string `json:"action" example:"removed" doc:"Action type: added, removed"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceChangeEvent.
func (e DeviceChangeEvent) Type() uint32 { return TypeDeviceChange }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"camera" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
