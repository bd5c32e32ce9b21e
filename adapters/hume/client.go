// Package hume implements the emotion inference interface against the Hume
// batch measurement API: submit a frame as an asynchronous job, poll its
// status, then fetch a deeply nested predictions payload once completed.
package hume

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/kresnabayu/cermin/server/domain/entities"
	"github.com/kresnabayu/cermin/server/domain/repositories"
)

const (
	defaultAPIBaseURL  = "https://api.hume.ai/v0/batch"
	defaultHTTPTimeout = 15 * time.Second
	defaultFilename    = "frame.jpg"

	// modelsDescriptor selects face expression analysis for submitted media
	modelsDescriptor = `{"models":{"face":{}}}`

	// groupedPredictionsPath walks the predictions payload: a top-level array
	// of per-file predictions, a model-results object, then face predictions
	// grouped per detected face
	groupedPredictionsPath = "0.results.predictions.0.models.face.grouped_predictions"
)

// Config holds configuration for the Hume batch API client.
// Required fields:
// - APIKey: Your Hume API key
// Optional fields with defaults:
// - APIBaseURL: The base URL for the batch API (default: "https://api.hume.ai/v0/batch")
// - HTTPTimeout: Per-request timeout (default: 15s)
type Config struct {
	APIKey      string
	APIBaseURL  string
	HTTPTimeout time.Duration
}

// ValidateConfig validates the Config
func ValidateConfig(config Config) error {
	if config.APIKey == "" {
		return fmt.Errorf("hume API key is required")
	}
	if config.HTTPTimeout < 0 {
		return fmt.Errorf("HTTP timeout must be positive, got %s", config.HTTPTimeout)
	}
	return nil
}

// NewConfigFromEnv creates a Config from environment variables
func NewConfigFromEnv() Config {
	config := Config{
		APIKey:     os.Getenv("HUME_API_KEY"),
		APIBaseURL: os.Getenv("HUME_API_BASE_URL"),
	}

	if timeoutStr := os.Getenv("HUME_HTTP_TIMEOUT_SECONDS"); timeoutStr != "" {
		if seconds, err := strconv.Atoi(timeoutStr); err == nil && seconds > 0 {
			config.HTTPTimeout = time.Duration(seconds) * time.Second
		}
	}

	return config
}

// Client talks to the Hume batch API
type Client struct {
	apiKey     string
	apiBaseURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure Client implements the EmotionInference interface
var _ repositories.EmotionInference = (*Client)(nil)

// NewClient creates a new Hume batch API client
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", apiBaseURL))
	}

	httpTimeout := config.HTTPTimeout
	if httpTimeout == 0 {
		httpTimeout = defaultHTTPTimeout
	}

	return &Client{
		apiKey:     config.APIKey,
		apiBaseURL: apiBaseURL,
		httpClient: &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}, nil
}

// SubmitJob implements repositories.EmotionInference. The image is consumed
// by this call and never retained: once the multipart body is written, the
// client holds no reference to the frame.
func (c *Client) SubmitJob(ctx context.Context, image repositories.ImageArtifact) (string, error) {
	if len(image.Data) == 0 {
		return "", fmt.Errorf("image artifact is empty")
	}

	filename := image.Filename
	if filename == "" {
		filename = defaultFilename
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("json", modelsDescriptor); err != nil {
		return "", fmt.Errorf("failed to write models descriptor: %w", err)
	}
	filePart, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := filePart.Write(image.Data); err != nil {
		return "", fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/jobs", c.apiBaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("X-Hume-Api-Key", c.apiKey)

	c.logger.Debug("Submitting inference job",
		zap.Int("imageSize", len(image.Data)),
		zap.String("mimeType", image.MIMEType))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to submit job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("job submission rejected with status %d: %s", resp.StatusCode, string(errorBody))
	}

	var submitResponse struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitResponse); err != nil {
		return "", fmt.Errorf("failed to decode submission response: %w", err)
	}
	if submitResponse.JobID == "" {
		return "", fmt.Errorf("submission response carried no job id")
	}

	c.logger.Info("Inference job submitted", zap.String("jobID", submitResponse.JobID))
	return submitResponse.JobID, nil
}

// GetJobStatus implements repositories.EmotionInference
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (repositories.JobStatus, error) {
	url := fmt.Sprintf("%s/jobs/%s", c.apiBaseURL, jobID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("X-Hume-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to get job status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("job status request failed with status %d: %s", resp.StatusCode, string(errorBody))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read job status response: %w", err)
	}

	switch gjson.GetBytes(payload, "state.status").String() {
	case "COMPLETED":
		return repositories.JobStatusCompleted, nil
	case "FAILED":
		return repositories.JobStatusFailed, nil
	case "QUEUED":
		return repositories.JobStatusQueued, nil
	default:
		return repositories.JobStatusRunning, nil
	}
}

// FetchPredictions implements repositories.EmotionInference. The payload
// shape is not guaranteed to be consistent immediately after the completed
// signal; any missing layer comes back as ErrPredictionsNotReady so the
// caller retries instead of failing. An intact payload with no detected
// faces yields an empty vector.
func (c *Client) FetchPredictions(ctx context.Context, jobID string) (entities.EmotionVector, error) {
	url := fmt.Sprintf("%s/jobs/%s/predictions", c.apiBaseURL, jobID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("X-Hume-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch predictions: %w", err)
	}
	defer resp.Body.Close()

	// A 404 right after completion is the eventual-consistency window
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("job %s: %w", jobID, repositories.ErrPredictionsNotReady)
	}
	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("predictions request failed with status %d: %s", resp.StatusCode, string(errorBody))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read predictions response: %w", err)
	}

	return unwrapPredictions(jobID, payload)
}

// unwrapPredictions walks the nested predictions payload layer by layer.
// Grouped face predictions hold per-face prediction frames, each with an
// emotions array of {name, score} entries.
func unwrapPredictions(jobID string, payload []byte) (entities.EmotionVector, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("job %s: invalid predictions JSON: %w", jobID, repositories.ErrPredictionsNotReady)
	}

	grouped := gjson.GetBytes(payload, groupedPredictionsPath)
	if !grouped.Exists() || !grouped.IsArray() {
		return nil, fmt.Errorf("job %s: grouped predictions missing: %w", jobID, repositories.ErrPredictionsNotReady)
	}

	vector := make(entities.EmotionVector, 0)
	for _, face := range grouped.Array() {
		for _, frame := range face.Get("predictions").Array() {
			for _, emotion := range frame.Get("emotions").Array() {
				name := emotion.Get("name").String()
				if name == "" {
					continue
				}
				vector = append(vector, entities.EmotionScore{
					Label: name,
					Score: emotion.Get("score").Float(),
				})
			}
		}
	}

	// No faces detected is a legitimate empty outcome, not an error
	return vector, nil
}
