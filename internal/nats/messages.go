package nats

import (
	"encoding/json"
)

// Subject names for NATS topics.
const (
	SubjectDetections   = "perceptd.detections"
	SubjectSessionState = "perceptd.session.state"
)

// ScoreEntry is one class score inside a detection message.
type ScoreEntry struct {
	ClassID    int     `json:"class_id"`
	Label      string  `json:"label,omitempty"`
	Confidence float32 `json:"confidence"`
}

// DetectionMessage represents a classification result sent over NATS.
type DetectionMessage struct {
	Timestamp   string       `json:"timestamp"`
	Top         ScoreEntry   `json:"top"`
	Scores      []ScoreEntry `json:"scores"`
	FrameWidth  int          `json:"frame_width"`
	FrameHeight int          `json:"frame_height"`
	InferenceMS float64      `json:"inference_ms"`
}

// Marshal serializes the message to JSON.
func (m DetectionMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// StateMessage represents a capture session state change sent over NATS.
type StateMessage struct {
	Timestamp  string `json:"timestamp"`
	State      string `json:"state"` // uninitialized, configured, streaming, stopped
	DevicePath string `json:"device_path"`
}

// Marshal serializes the message to JSON.
func (m StateMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalDetection deserializes a DetectionMessage from JSON.
func UnmarshalDetection(data []byte) (DetectionMessage, error) {
	var m DetectionMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalState deserializes a StateMessage from JSON.
func UnmarshalState(data []byte) (StateMessage, error) {
	var m StateMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
