package dto

import (
	"errors"
	"io"

	"hdrEnhancer/pkg/task"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidState      = errors.New("task is not in a cancellable state")
	ErrResultUnavailable = errors.New("task not completed or no result available")
	ErrQuotaExceeded     = errors.New("daily processing limit reached")
	ErrValidation        = errors.New("validation failed")
)

type CreateTaskRequest struct {
	OriginalFilename string
	InputFormat      task.Format
	Size             int64
	Body             io.Reader
}

type UploadResponse struct {
	TaskID    string `json:"task_id"`
	JobHandle string `json:"job_handle"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type TaskResponse struct {
	ID                    string   `json:"task_id"`
	TraceID               string   `json:"trace_id,omitempty"`
	OriginalFilename      string   `json:"original_filename"`
	Status                string   `json:"status"`
	Progress              int      `json:"progress"`
	ResultLocation        *string  `json:"result_path"`
	ErrorMessage          *string  `json:"error_message"`
	OutputFormat          string   `json:"output_format,omitempty"`
	CreatedAt             string   `json:"created_at"`
	UpdatedAt             string   `json:"updated_at"`
	ProcessingTimeSeconds *float64 `json:"processing_time,omitempty"`
	InputSizeBytes        *int64   `json:"file_size_original,omitempty"`
	OutputSizeBytes       *int64   `json:"file_size_result,omitempty"`
}

type HistoryResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
}

type CancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ResultFile is an open result object. The caller closes Body.
type ResultFile struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}
