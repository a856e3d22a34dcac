// Package models defines the request and response bodies of the HTTP
// API.
package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.3" doc:"Application version"`
	GitCommit string `json:"git_commit" doc:"Git commit hash"`
	BuildDate string `json:"build_date" doc:"Build timestamp"`
	BuildID   string `json:"build_id" doc:"Build identifier"`
	GoVersion string `json:"go_version" doc:"Go toolchain version"`
	Compiler  string `json:"compiler" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Pipeline status models
type StatusData struct {
	SessionState    string `json:"session_state" example:"streaming" doc:"Capture session state"`
	DevicePath      string `json:"device_path" example:"/dev/video0" doc:"Active capture device"`
	PixelFormat     string `json:"pixel_format" example:"NV12" doc:"Negotiated pixel format"`
	Width           int    `json:"width" example:"640" doc:"Negotiated frame width"`
	Height          int    `json:"height" example:"480" doc:"Negotiated frame height"`
	PoolSize        int    `json:"pool_size" example:"4" doc:"Allocated capture buffers"`
	FramesCompleted uint64 `json:"frames_completed" doc:"Capture buffers dequeued with valid data"`
	CyclesDropped   uint64 `json:"cycles_dropped" doc:"Capture cycles abandoned before a detection"`
	Inferences      uint64 `json:"inferences" doc:"Completed model invocations"`
}

type StatusResponse struct {
	Body StatusData
}

// Detection models
type ScoreData struct {
	ClassID    int     `json:"class_id" example:"1" doc:"Model output class index"`
	Label      string  `json:"label,omitempty" example:"person" doc:"Class label"`
	Confidence float32 `json:"confidence" example:"0.82" doc:"Dequantized confidence"`
}

type DetectionData struct {
	Top         ScoreData   `json:"top" doc:"Highest-confidence class"`
	Scores      []ScoreData `json:"scores" doc:"All class scores in ascending class order"`
	FrameWidth  int         `json:"frame_width" example:"640" doc:"Source frame width"`
	FrameHeight int         `json:"frame_height" example:"480" doc:"Source frame height"`
	InferenceMS float64     `json:"inference_ms" example:"14.2" doc:"Model invoke duration in milliseconds"`
	Timestamp   string      `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Completion timestamp"`
}

type DetectionResponse struct {
	Body DetectionData
}

// Label models
type LabelsData struct {
	Labels []string `json:"labels" doc:"Class labels in class ID order"`
	Count  int      `json:"count" example:"4" doc:"Number of classes"`
}

type LabelsResponse struct {
	Body LabelsData
}

// Device models
type DeviceInfo struct {
	DevicePath string   `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	DeviceName string   `json:"device_name" example:"USB Camera" doc:"Human-readable device name"`
	DeviceID   string   `json:"device_id" doc:"Stable device identifier"`
	Formats    []string `json:"formats,omitempty" doc:"Supported pixel formats (fourcc)"`
}

type DevicesData struct {
	Devices []DeviceInfo `json:"devices" doc:"Video capture devices"`
	Count   int          `json:"count" example:"1" doc:"Number of devices"`
}

type DevicesResponse struct {
	Body DevicesData
}

// Log models
type LogEntryData struct {
	Timestamp  string         `json:"timestamp" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"camera" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

type LogsData struct {
	Entries []LogEntryData `json:"entries" doc:"Recent log entries, oldest first"`
	Count   int            `json:"count" doc:"Number of entries"`
}

type LogsResponse struct {
	Body LogsData
}
