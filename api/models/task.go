package models

import (
	"time"

	"hdrEnhancer/pkg/task"
)

type Task struct {
	ID                    string
	TraceID               string
	Owner                 string
	OriginalFilename      string
	InputLocation         string
	ResultLocation        *string
	Status                task.Status
	Progress              int
	JobHandle             *string
	ErrorMessage          *string
	OutputFormat          task.Format
	OutputQuality         int
	CreatedAt             time.Time
	UpdatedAt             time.Time
	ProcessingTimeSeconds *float64
	InputSizeBytes        *int64
	OutputSizeBytes       *int64
}

func (t *Task) HasResult() bool {
	return t.Status == task.StatusCompleted && t.ResultLocation != nil && *t.ResultLocation != ""
}
