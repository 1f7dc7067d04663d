package quota

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yaroslav/clusterplane/models"
)

type fakeSource struct {
	quota    *models.Quota
	count    int
	quotaErr error
}

func (f *fakeSource) GetQuota(ctx context.Context, projectID, resource string) (*models.Quota, error) {
	if f.quotaErr != nil {
		return nil, f.quotaErr
	}
	if f.quota == nil {
		return nil, models.ErrQuotaNotFound
	}
	return f.quota, nil
}

func (f *fakeSource) CountAll(ctx context.Context, projectID string) (int, error) {
	return f.count, nil
}

func TestCheck_ExplicitQuota(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		wantErr bool
	}{
		{"below limit", 1, false},
		{"at limit", 2, true},
		{"above limit", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{
				quota: &models.Quota{ProjectID: "p1", Resource: models.QuotaResourceCluster, HardLimit: 2},
				count: tt.count,
			}
			err := NewGuard(src, 20, zap.NewNop()).Check(context.Background(), "p1")
			if tt.wantErr {
				if !errors.Is(err, models.ErrResourceLimitExceeded) {
					t.Fatalf("Check() error = %v, want ErrResourceLimitExceeded", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Check() unexpected error: %v", err)
			}
		})
	}
}

func TestCheck_DefaultLimit(t *testing.T) {
	guard := NewGuard(&fakeSource{count: 2}, 3, zap.NewNop())
	if err := guard.Check(context.Background(), "p1"); err != nil {
		t.Fatalf("Check() unexpected error: %v", err)
	}

	guard = NewGuard(&fakeSource{count: 3}, 3, zap.NewNop())
	if err := guard.Check(context.Background(), "p1"); !errors.Is(err, models.ErrResourceLimitExceeded) {
		t.Fatalf("Check() error = %v, want ErrResourceLimitExceeded", err)
	}

	limit, err := NewGuard(&fakeSource{}, 0, zap.NewNop()).Limit(context.Background(), "p1")
	if err != nil || limit != DefaultMaxClustersPerProject {
		t.Errorf("Limit() = %d, %v, want %d", limit, err, DefaultMaxClustersPerProject)
	}
}

func TestCheck_SourceError(t *testing.T) {
	guard := NewGuard(&fakeSource{quotaErr: models.ErrDatabaseError}, 3, zap.NewNop())
	err := guard.Check(context.Background(), "p1")
	if !errors.Is(err, models.ErrDatabaseError) {
		t.Fatalf("Check() error = %v, want wrapped ErrDatabaseError", err)
	}
}

func TestCheck_LogsRejection(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	guard := NewGuard(&fakeSource{count: 1}, 1, zap.New(core))

	_ = guard.Check(context.Background(), "p1")

	entries := logs.FilterMessage("cluster quota reached").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["project_id"]; got != "p1" {
		t.Errorf("project_id field = %v", got)
	}
}
