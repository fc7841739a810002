// Package task holds the lifecycle vocabulary shared by the API and the worker:
// statuses, checkpoint progress values, output formats and the queue message.
package task

import "strings"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// CancelledMessage is written to error_message when an owner cancels a task.
const CancelledMessage = "Task cancelled by user"

// Checkpoint progress values reported by the worker, in execution order.
const (
	ProgressQueued      = 0
	ProgressAcquired    = 10
	ProgressDecoded     = 30
	ProgressModelLoaded = 50
	ProgressEnhanced    = 70
	ProgressWritten     = 90
	ProgressDone        = 100
)

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusProcessing
}

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatTIFF Format = "tiff"
)

const DefaultQuality = 95

// ParseFormat accepts the canonical names plus common aliases ("jpg", "tif").
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return FormatJPEG, true
	case "png":
		return FormatPNG, true
	case "tiff", "tif":
		return FormatTIFF, true
	default:
		return "", false
	}
}

func (f Format) Extension() string {
	switch f {
	case FormatPNG:
		return ".png"
	case FormatTIFF:
		return ".tiff"
	default:
		return ".jpg"
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "image/jpeg"
	}
}

// Message is the job payload published to Kafka for every accepted upload.
type Message struct {
	TaskID        string `json:"task_id"`
	TraceID       string `json:"trace_id"`
	JobHandle     string `json:"job_handle"`
	Owner         string `json:"owner"`
	InputLocation string `json:"input_location"`
	OutputFormat  Format `json:"output_format"`
	OutputQuality int    `json:"output_quality"`
}
