// Package api implements the HTTP client for the simulation control backend.
// All requests funnel through one retry wrapper so retry policy lives in a
// single place: network errors and 5xx responses are retried with a fixed
// delay, 4xx responses are returned immediately.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/simulationcontrol/simctl/internal/simctl/domain"
	"github.com/simulationcontrol/simctl/pkg/config"
	"github.com/simulationcontrol/simctl/pkg/errors"
	"github.com/simulationcontrol/simctl/pkg/logger"
)

type Client struct {
	httpClient    *http.Client
	baseURL       string
	retryAttempts int
	retryDelay    time.Duration
	limiter       *rate.Limiter
	logger        *logger.Logger
}

// NewClient builds a backend client from the API section of the config.
// A zero RequestsPerSecond disables the rate limiter.
func NewClient(cfg config.APIConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.WithField("component", "api-client")
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		limiter:       limiter,
		logger:        log,
	}
}

// BaseURL returns the configured backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateJob submits a world archive plus hyperparameters as a multipart
// request. The archive is buffered so failed attempts can be resent.
func (c *Client) CreateJob(ctx context.Context, worldName string, zipReader io.Reader, size int64, hp domain.Hyperparameters) (*CreateJobResponse, error) {
	if err := domain.ValidateWorldArchive(worldName, size); err != nil {
		return nil, err
	}
	if err := hp.Validate(); err != nil {
		return nil, err
	}

	hpJSON, err := json.Marshal(hp)
	if err != nil {
		return nil, fmt.Errorf("encoding hyperparameters: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("world_zip", worldName)
	if err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, zipReader); err != nil {
		return nil, fmt.Errorf("reading world archive: %w", err)
	}
	if err := writer.WriteField("hparams", string(hpJSON)); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/jobs", writer.FormDataContentType(), body.Bytes())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var created CreateJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decoding job creation response: %w", err)
	}
	if created.JobID == "" {
		return nil, fmt.Errorf("backend accepted job but returned no job id")
	}
	return &created, nil
}

// GetJobStatus fetches the backend's current view of a job's lifecycle state
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*StatusResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/state/"+jobID, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding status response: %w", err)
	}
	if !status.State.Valid() {
		return nil, fmt.Errorf("backend reported unknown job state %q", status.State)
	}
	return &status, nil
}

// StopJob asks the backend to cancel the job. Any 2xx means the request was
// accepted; the authoritative terminal state arrives via poll or stream.
func (c *Client) StopJob(ctx context.Context, jobID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/jobs/"+jobID, "", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// GetMetricsHistory returns the recorded metrics for a job, oldest first.
// A job with no metrics yet yields an empty slice, not an error.
func (c *Client) GetMetricsHistory(ctx context.Context, jobID string) ([]domain.TrainingMetrics, error) {
	resp, err := c.do(ctx, http.MethodGet, "/jobs/"+jobID+"/metrics", "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading metrics history: %w", err)
	}

	var metrics []domain.TrainingMetrics
	if err := json.Unmarshal(data, &metrics); err == nil {
		return metrics, nil
	}

	// the endpoint answers {"message": "..."} instead of an array when no
	// metrics exist yet
	var envelope messageEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Message != "" {
		c.logger.Debug("no metrics recorded for job", "jobId", jobID, "message", envelope.Message)
		return []domain.TrainingMetrics{}, nil
	}
	return nil, fmt.Errorf("decoding metrics history: unexpected body")
}

// DownloadModel streams the trained model archive into w, returning the
// number of bytes written.
func (c *Client) DownloadModel(ctx context.Context, jobID string, w io.Writer) (int64, error) {
	return c.download(ctx, "/jobs/"+jobID+"/download/model", w)
}

// DownloadTensorboard streams the tensorboard log archive into w
func (c *Client) DownloadTensorboard(ctx context.Context, jobID string, w io.Writer) (int64, error) {
	return c.download(ctx, "/jobs/"+jobID+"/download/tensorboard", w)
}

// ContentLength probes an artifact endpoint for its size, for progress
// reporting. Returns -1 when the backend does not advertise a length.
func (c *Client) ContentLength(ctx context.Context, jobID, artifact string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/jobs/"+jobID+"/download/"+artifact, nil)
	if err != nil {
		return -1
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return -1
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return -1
	}
	return resp.ContentLength
}

func (c *Client) download(ctx context.Context, path string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("downloading artifact: %w", err)
	}
	return n, nil
}

// do executes one logical request with the retry policy applied. The body is
// a byte slice so every attempt sends identical content. On success the
// caller owns resp.Body; error responses are drained here and surfaced as
// APIError values.
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	url := c.baseURL + path
	attempts := c.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			c.logger.Debug("retrying request", "method", method, "path", path, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = errors.NewAPIError(0, "backend unreachable", err)
			c.logger.Warn("request failed", "method", method, "path", path, "attempt", attempt, "error", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		apiErr := errors.NewAPIError(resp.StatusCode, readErrorMessage(resp.Body), nil)
		resp.Body.Close()
		if !errors.IsRetryable(apiErr) {
			return nil, apiErr
		}
		lastErr = apiErr
		c.logger.Warn("server error response", "method", method, "path", path,
			"status", resp.StatusCode, "attempt", attempt)
	}
	return nil, lastErr
}

// readErrorMessage extracts a human-readable message from an error response
// body, falling back to the raw text when it is not the JSON envelope.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var envelope errorBody
	if err := json.Unmarshal(data, &envelope); err == nil {
		if envelope.Detail != "" {
			return envelope.Detail
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return strings.TrimSpace(string(data))
}
