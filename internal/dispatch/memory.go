package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/models"
)

// Memory is a channel-backed Dispatcher for single-process use and tests.
//
// Dispatch fails with models.ErrServiceUnavailable when the buffer is full
// or a failure has been injected with SetFailure.
type Memory struct {
	queue  chan *models.Command
	logger *zap.Logger

	mu      sync.Mutex
	failure error
}

// NewMemory creates an in-memory dispatcher holding up to size commands.
func NewMemory(size int, logger *zap.Logger) *Memory {
	if size <= 0 {
		size = 1
	}
	return &Memory{
		queue:  make(chan *models.Command, size),
		logger: logger,
	}
}

// SetFailure makes every following Dispatch fail with err. A nil err
// restores normal operation.
func (m *Memory) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// Dispatch enqueues the command without blocking.
func (m *Memory) Dispatch(ctx context.Context, name, clusterID string, payload interface{}) error {
	m.mu.Lock()
	failure := m.failure
	m.mu.Unlock()
	if failure != nil {
		recordDispatch(name, failure)
		return fmt.Errorf("%w: %v", models.ErrServiceUnavailable, failure)
	}

	cmd, err := newCommand(name, clusterID, payload, time.Now())
	if err != nil {
		recordDispatch(name, err)
		return fmt.Errorf("%w: %v", models.ErrServiceUnavailable, err)
	}

	select {
	case <-ctx.Done():
		recordDispatch(name, ctx.Err())
		return fmt.Errorf("%w: %v", models.ErrServiceUnavailable, ctx.Err())
	case m.queue <- cmd:
	default:
		recordDispatch(name, errQueueFull)
		return fmt.Errorf("%w: %v", models.ErrServiceUnavailable, errQueueFull)
	}

	recordDispatch(name, nil)
	m.logger.Debug("command queued in memory",
		zap.String("command", name),
		zap.String("cluster_id", clusterID),
	)
	return nil
}

// Commands exposes the queue for consumers.
func (m *Memory) Commands() <-chan *models.Command {
	return m.queue
}

// Drain removes and returns every queued command.
func (m *Memory) Drain() []*models.Command {
	var out []*models.Command
	for {
		select {
		case cmd := <-m.queue:
			out = append(out, cmd)
		default:
			return out
		}
	}
}

var errQueueFull = errors.New("command queue is full")
