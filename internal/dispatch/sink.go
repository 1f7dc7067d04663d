package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"

	"github.com/yaroslav/clusterplane/models"
)

// Sink delivers one command to the backend orchestrator.
type Sink interface {
	Deliver(ctx context.Context, cmd *models.Command) error
}

// Envelope is the body posted to the backend for each command.
type Envelope struct {
	ID          string          `json:"id"`
	Command     string          `json:"command"`
	ClusterID   string          `json:"cluster_id"`
	Fingerprint string          `json:"fingerprint"`
	CreatedAt   time.Time       `json:"created_at"`
	Payload     json.RawMessage `json:"payload"`
}

func envelopeFor(cmd *models.Command) Envelope {
	return Envelope{
		ID:          cmd.ID,
		Command:     cmd.Name,
		ClusterID:   cmd.ClusterID,
		Fingerprint: fmt.Sprintf("%016x", cmd.Fingerprint),
		CreatedAt:   cmd.CreatedAt,
		Payload:     cmd.Payload,
	}
}

// HTTPSink posts command envelopes to the orchestrator's command endpoint.
type HTTPSink struct {
	client *resty.Client
	url    string
}

// NewHTTPSink creates a sink posting to url with the given request timeout.
func NewHTTPSink(url string, timeout time.Duration) *HTTPSink {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &HTTPSink{client: client, url: url}
}

// Deliver posts the command. Any non-2xx response is a delivery failure.
func (s *HTTPSink) Deliver(ctx context.Context, cmd *models.Command) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(envelopeFor(cmd)).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("failed to post command %s: %w", cmd.ID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("backend rejected command %s: status %d: %s", cmd.ID, resp.StatusCode(), resp.String())
	}
	return nil
}

// Close releases the underlying HTTP client.
func (s *HTTPSink) Close() error {
	return s.client.Close()
}

// LogSink logs commands instead of delivering them.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that only logs.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver logs the command and always succeeds.
func (s *LogSink) Deliver(_ context.Context, cmd *models.Command) error {
	s.logger.Info("command delivered to log sink",
		zap.String("command", cmd.Name),
		zap.String("command_id", cmd.ID),
		zap.String("cluster_id", cmd.ClusterID),
		zap.ByteString("payload", cmd.Payload),
	)
	return nil
}
