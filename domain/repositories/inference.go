package repositories

import (
	"context"
	"errors"

	"github.com/kresnabayu/cermin/server/domain/entities"
)

// ImageArtifact is one captured webcam frame. It is ephemeral: owned by the
// submission call and never retained after SubmitJob returns.
type ImageArtifact struct {
	Data     []byte
	MIMEType string
	Filename string
}

// JobStatus represents the remote inference job state
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ErrPredictionsNotReady indicates the predictions payload was missing a
// layer the client expected. The result of a completed job is not guaranteed
// to be immediately consistent with the completed signal, so callers retry
// the fetch rather than treating this as a failure.
var ErrPredictionsNotReady = errors.New("predictions payload not ready")

// EmotionInference abstracts the remote asynchronous emotion inference
// service. One call sequence per capture: SubmitJob, GetJobStatus until
// completed, FetchPredictions.
type EmotionInference interface {
	// SubmitJob submits a frame for analysis and returns the job ID.
	// An error here means the submission itself was rejected; it is not
	// retried at this layer.
	SubmitJob(ctx context.Context, image ImageArtifact) (string, error)
	// GetJobStatus returns the current state of a submitted job
	GetJobStatus(ctx context.Context, jobID string) (JobStatus, error)
	// FetchPredictions retrieves the emotion vector of a completed job.
	// An empty vector is a legitimate "no face detected" outcome.
	FetchPredictions(ctx context.Context, jobID string) (entities.EmotionVector, error)
}
