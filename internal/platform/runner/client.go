package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Job is the payload describing what the runner should execute. Expected
// outputs are deliberately absent: the runner returns raw telemetry and the
// backend decides correctness.
type Job struct {
	SubmissionID string        `json:"submissionId"`
	Language     string        `json:"language"`
	Source       string        `json:"source"`
	TimeLimitSec float64       `json:"timeLimitSec"`
	TestCases    []JobTestCase `json:"testCases"`
}

type JobTestCase struct {
	TestCaseID string `json:"testCaseId"`
	InputData  string `json:"inputData"`
}

// Client sends execution jobs to the external runner service.
type Client interface {
	SendJob(ctx context.Context, job Job) error
}

type httpClient struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewHTTPClient(url string, timeout time.Duration, logger *zap.Logger) Client {
	return &httpClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// SendJob makes exactly one attempt; the caller owns failure handling.
func (c *httpClient) SendJob(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal runner job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build runner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send job to runner: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("runner returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Info("job sent to runner",
		zap.String("submission_id", job.SubmissionID),
		zap.Int("test_cases", len(job.TestCases)),
		zap.String("runner_response", string(respBody)))
	return nil
}
