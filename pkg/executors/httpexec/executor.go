// Package httpexec executes api-call tasks over HTTP.
package httpexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

const ExecutorKind = "http"

const defaultTimeout = 30 * time.Second

func NewFactory() *Factory {
	return &Factory{}
}

type Factory struct{}

func (f *Factory) Kind() string {
	return ExecutorKind
}

func (f *Factory) Create(config map[string]any, logger *slog.Logger) (protocol.AgentExecutor, error) {
	timeout := defaultTimeout
	if seconds, ok := config["timeout_seconds"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}

	return NewExecutor(logger, timeout), nil
}

type Executor struct {
	logger *slog.Logger
	client *http.Client
}

func NewExecutor(logger *slog.Logger, timeout time.Duration) *Executor {
	return &Executor{
		logger: logger.With("module", "http-executor"),
		client: &http.Client{Timeout: timeout},
	}
}

func (e *Executor) Kind() string {
	return ExecutorKind
}

// Execute performs the request described by the task payload: url (required),
// method, headers, body. Server errors (5xx) are returned as errors so the
// coordinator's retry policy applies; other statuses are reported as output.
func (e *Executor) Execute(ctx context.Context, agent *models.Agent, task *models.Task) (map[string]any, error) {
	url, _ := task.Payload["url"].(string)
	if url == "" {
		return nil, errors.New("task payload is missing url")
	}

	method, _ := task.Payload["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if body, ok := task.Payload["body"].(string); ok && body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	if headers, ok := task.Payload["headers"].(map[string]any); ok {
		for key, value := range headers {
			if strVal, ok := value.(string); ok {
				req.Header.Set(key, strVal)
			}
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to close response body", "error", err)
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("server error (status %d)", resp.StatusCode)
	}

	var body any

	err = json.Unmarshal(bodyBytes, &body)
	if err != nil {
		body = string(bodyBytes) // Non-JSON responses pass through as text
	}

	e.logger.InfoContext(ctx, "HTTP task completed",
		"task_id", task.ID,
		"agent_id", agent.ID,
		"status", resp.StatusCode)

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
	}, nil
}
