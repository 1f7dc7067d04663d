package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/internal/metrics"
)

// RelayConfig controls the outbox relay loop.
type RelayConfig struct {
	// Interval between outbox scans
	Interval time.Duration

	// BatchSize is the maximum number of commands delivered per scan
	BatchSize int

	// DeliveryTimeout bounds a single Sink.Deliver call
	DeliveryTimeout time.Duration
}

// DefaultRelayConfig returns the relay settings used when none are configured.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Interval:        2 * time.Second,
		BatchSize:       50,
		DeliveryTimeout: 10 * time.Second,
	}
}

// Relay moves pending outbox commands to a Sink in the background.
//
// Each command is attempted once. A relay claims a row before delivering it,
// so relays of several API instances sharing one database never deliver the
// same command twice. A failed delivery marks the row failed and is not
// retried, and a row left in delivering by a crash stays there.
type Relay struct {
	config RelayConfig
	outbox *Outbox
	sink   Sink
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRelay creates a relay. Zero config values fall back to DefaultRelayConfig.
//
// Parameters:
//   - config: Relay configuration
//   - outbox: Outbox to drain
//   - sink: Destination for commands
//   - logger: Zap logger for structured logging
//
// Returns:
//   - Configured Relay
func NewRelay(config RelayConfig, outbox *Outbox, sink Sink, logger *zap.Logger) *Relay {
	def := DefaultRelayConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = def.DeliveryTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		config: config,
		outbox: outbox,
		sink:   sink,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the relay goroutine.
func (r *Relay) Start() {
	r.logger.Info("command relay started",
		zap.Duration("interval", r.config.Interval),
		zap.Int("batch_size", r.config.BatchSize),
	)

	r.wg.Add(1)
	go r.loop()
}

// Stop cancels the relay and waits for the current pass to finish.
func (r *Relay) Stop() {
	r.cancel()
	r.wg.Wait()
	r.logger.Info("command relay stopped")
}

func (r *Relay) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(r.ctx); err != nil && r.ctx.Err() == nil {
				r.logger.Error("relay pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce delivers one batch of pending commands.
//
// Returns:
//   - int: Number of commands delivered successfully
//   - error: Failure to read or update the outbox (delivery errors are recorded per row)
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.outbox.Pending(ctx, r.config.BatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, cmd := range pending {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}

		claimed, err := r.outbox.Claim(ctx, cmd.ID)
		if err != nil {
			return delivered, err
		}
		if !claimed {
			r.logger.Debug("command claimed by another relay", zap.String("command_id", cmd.ID))
			continue
		}

		deliverCtx, cancel := context.WithTimeout(ctx, r.config.DeliveryTimeout)
		deliverErr := r.sink.Deliver(deliverCtx, cmd)
		cancel()

		if deliverErr != nil {
			metrics.RelayDeliveries.WithLabelValues(cmd.Name, "failure").Inc()
			r.logger.Warn("command delivery failed",
				zap.String("command", cmd.Name),
				zap.String("command_id", cmd.ID),
				zap.String("cluster_id", cmd.ClusterID),
				zap.Error(deliverErr),
			)
			if err := r.outbox.MarkFailed(ctx, cmd.ID, deliverErr.Error()); err != nil {
				return delivered, err
			}
			continue
		}

		metrics.RelayDeliveries.WithLabelValues(cmd.Name, "success").Inc()
		if err := r.outbox.MarkDelivered(ctx, cmd.ID); err != nil {
			return delivered, err
		}
		delivered++
	}

	if n, err := r.outbox.PendingCount(ctx); err == nil {
		metrics.RelayPending.Set(float64(n))
	}
	return delivered, nil
}
