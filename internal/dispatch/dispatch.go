// Package dispatch issues fire-and-forget commands to the backend orchestrator.
//
// The API never waits for the backend: a command is considered issued once a
// Dispatcher has accepted it. Delivery to the orchestrator happens later, out
// of band, through a Relay draining the Outbox.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/rs/xid"

	"github.com/yaroslav/clusterplane/internal/metrics"
	"github.com/yaroslav/clusterplane/models"
)

// Dispatcher accepts commands for asynchronous execution.
//
// Dispatch returns once the command is enqueued. It never retries; a failure
// to enqueue is reported wrapped in models.ErrServiceUnavailable.
type Dispatcher interface {
	Dispatch(ctx context.Context, name, clusterID string, payload interface{}) error
}

// newCommand builds a pending command with a fresh id and payload fingerprint.
func newCommand(name, clusterID string, payload interface{}, now time.Time) (*models.Command, error) {
	switch name {
	case models.CommandClusterCreate, models.CommandClusterUpdate, models.CommandClusterDelete:
	default:
		return nil, fmt.Errorf("%w: unknown command %q", models.ErrInternalError, name)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", name, err)
	}

	fingerprint, err := hashstructure.Hash(struct {
		Name      string
		ClusterID string
		Payload   interface{}
	}{name, clusterID, payload}, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint %s payload: %w", name, err)
	}

	return &models.Command{
		ID:          xid.NewWithTime(now).String(),
		Name:        name,
		ClusterID:   clusterID,
		Payload:     body,
		Fingerprint: fingerprint,
		Status:      models.CommandPending,
		CreatedAt:   now.UTC(),
	}, nil
}

func recordDispatch(name string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.CommandsDispatched.WithLabelValues(name, status).Inc()
}
