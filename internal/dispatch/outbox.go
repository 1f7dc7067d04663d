package dispatch

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/internal/metrics"
	"github.com/yaroslav/clusterplane/models"
)

// Outbox is a Dispatcher that persists commands to the commands table.
//
// A Relay later reads pending rows and delivers them to the backend.
type Outbox struct {
	db     *sql.DB
	logger *zap.Logger

	// For testing - allow overriding time functions
	now func() time.Time
}

// NewOutbox creates an outbox over a database that already carries the
// commands table.
//
// Parameters:
//   - db: Database connection (see store.Store.DB)
//   - logger: Zap logger for structured logging
//
// Returns:
//   - Configured Outbox
func NewOutbox(db *sql.DB, logger *zap.Logger) *Outbox {
	return &Outbox{db: db, logger: logger, now: time.Now}
}

// Dispatch records a pending command.
func (o *Outbox) Dispatch(ctx context.Context, name, clusterID string, payload interface{}) error {
	cmd, err := newCommand(name, clusterID, payload, o.now())
	if err != nil {
		recordDispatch(name, err)
		return fmt.Errorf("%w: %v", models.ErrServiceUnavailable, err)
	}

	start := time.Now()
	_, err = o.db.ExecContext(ctx, `
		INSERT INTO commands (id, name, cluster_id, payload, fingerprint, status, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`, cmd.ID, cmd.Name, cmd.ClusterID, string(cmd.Payload),
		strconv.FormatUint(cmd.Fingerprint, 10), string(cmd.Status),
		cmd.CreatedAt.Format(time.RFC3339Nano),
	)
	metrics.ObserveQuery("command_insert", start, err)
	recordDispatch(name, err)
	if err != nil {
		o.logger.Error("failed to enqueue command",
			zap.String("command", name),
			zap.String("cluster_id", clusterID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: failed to enqueue %s: %v", models.ErrServiceUnavailable, name, err)
	}

	o.logger.Info("command enqueued",
		zap.String("command", name),
		zap.String("command_id", cmd.ID),
		zap.String("cluster_id", clusterID),
	)
	return nil
}

// Pending returns up to limit pending commands, oldest first.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]*models.Command, error) {
	return o.List(ctx, models.CommandPending, limit)
}

// List returns commands in the given status, oldest first. An empty status
// lists every command. A limit <= 0 means no limit.
func (o *Outbox) List(ctx context.Context, status models.CommandStatus, limit int) ([]*models.Command, error) {
	query := `
		SELECT id, name, cluster_id, payload, fingerprint, status, attempts, last_error, created_at, delivered_at
		FROM commands
	`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	start := time.Now()
	rows, err := o.db.QueryContext(ctx, query, args...)
	metrics.ObserveQuery("command_list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}
	defer rows.Close()

	commands := make([]*models.Command, 0)
	for rows.Next() {
		var (
			cmd                          models.Command
			payload, fingerprint, status string
			createdAt                    string
			deliveredAt                  sql.NullString
		)
		if err := rows.Scan(&cmd.ID, &cmd.Name, &cmd.ClusterID, &payload, &fingerprint,
			&status, &cmd.Attempts, &cmd.LastError, &createdAt, &deliveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		cmd.Payload = []byte(payload)
		cmd.Status = models.CommandStatus(status)
		if cmd.Fingerprint, err = strconv.ParseUint(fingerprint, 10, 64); err != nil {
			return nil, fmt.Errorf("failed to parse command fingerprint: %w", err)
		}
		if cmd.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse command created_at: %w", err)
		}
		if deliveredAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, deliveredAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse command delivered_at: %w", err)
			}
			cmd.DeliveredAt = &t
		}
		commands = append(commands, &cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate commands: %w", err)
	}
	return commands, nil
}

// Claim moves a pending command to delivering. It reports false when the
// command is no longer pending, for example because another relay claimed
// it first. A claimed command is never handed out again, even if the relay
// stops before marking it.
func (o *Outbox) Claim(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	res, err := o.db.ExecContext(ctx,
		`UPDATE commands SET status = ? WHERE id = ? AND status = ?`,
		string(models.CommandDelivering), id, string(models.CommandPending),
	)
	metrics.ObserveQuery("command_claim", start, err)
	if err != nil {
		return false, fmt.Errorf("failed to claim command %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim command %s: %w", id, err)
	}
	return n == 1, nil
}

// MarkDelivered records a successful delivery.
func (o *Outbox) MarkDelivered(ctx context.Context, id string) error {
	return o.mark(ctx, id, models.CommandDelivered, "")
}

// MarkFailed records a failed delivery. Failed commands are not retried.
func (o *Outbox) MarkFailed(ctx context.Context, id string, reason string) error {
	return o.mark(ctx, id, models.CommandFailed, reason)
}

func (o *Outbox) mark(ctx context.Context, id string, status models.CommandStatus, reason string) error {
	var deliveredAt interface{}
	if status == models.CommandDelivered {
		deliveredAt = o.now().UTC().Format(time.RFC3339Nano)
	}

	start := time.Now()
	res, err := o.db.ExecContext(ctx,
		`UPDATE commands SET status = ?, attempts = attempts + 1, last_error = ?, delivered_at = ? WHERE id = ?`,
		string(status), reason, deliveredAt, id,
	)
	metrics.ObserveQuery("command_mark", start, err)
	if err != nil {
		return fmt.Errorf("failed to mark command %s: %w", status, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: command %s", models.ErrNotFound, id)
	}
	return nil
}

// PendingCount returns the number of commands awaiting delivery.
func (o *Outbox) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := o.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commands WHERE status = ?`,
		string(models.CommandPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending commands: %w", err)
	}
	return n, nil
}
