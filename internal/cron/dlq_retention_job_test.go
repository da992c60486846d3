package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/hyeonlabs/guideport-backend/pkg/logger"
)

func TestDLQRetentionJobDeletesOldRows(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeDLQRetentionRepo{}
	job := newDLQRetentionJob(t, repo)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.UTC().Add(-dlqRetentionDays * 24 * time.Hour)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if repo.called != 1 {
		t.Fatalf("expected repo called once, got %d", repo.called)
	}
}

func TestDLQRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeDLQRetentionRepo{err: errors.New("boom")}
	job := newDLQRetentionJob(t, repo)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newDLQRetentionJob(t *testing.T, repo *fakeDLQRetentionRepo) *dlqRetentionJob {
	t.Helper()
	jobIface, err := NewDLQRetentionJob(DLQRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         outboxRetentionTxRunner{},
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewDLQRetentionJob: %v", err)
	}
	job, ok := jobIface.(*dlqRetentionJob)
	if !ok {
		t.Fatalf("expected dlqRetentionJob, got %T", jobIface)
	}
	return job
}

type fakeDLQRetentionRepo struct {
	lastCutoff time.Time
	called     int
	err        error
}

func (f *fakeDLQRetentionRepo) DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}
