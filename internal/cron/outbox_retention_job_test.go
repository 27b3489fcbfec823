package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/toolyard/toolyard-backend/pkg/logger"
	"gorm.io/gorm"
)

type fakeOutboxRetentionRepo struct {
	lastCutoff  time.Time
	minAttempts int
	called      int
	err         error
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	f.minAttempts = minAttemptCount
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

func buildOutboxRetention(t *testing.T, repo *fakeOutboxRetentionRepo, minAttempts int) *pruneJob {
	t.Helper()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
		DB:          pruneTxRunner{},
		Repository:  repo,
		MinAttempts: minAttempts,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	prune, ok := job.(*pruneJob)
	if !ok {
		t.Fatalf("expected prune job, got %T", job)
	}
	return prune
}

func TestOutboxRetentionJobPrunesPublishedRows(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{}
	job := buildOutboxRetention(t, repo, 0)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Name() != "outbox-retention" {
		t.Fatalf("unexpected name %q", job.Name())
	}

	wantCutoff := now.Add(-outboxRetentionDays * 24 * time.Hour)
	if !repo.lastCutoff.Equal(wantCutoff) {
		t.Fatalf("cutoff = %s, want %s", repo.lastCutoff, wantCutoff)
	}
	if repo.minAttempts != outboxMinAttempts {
		t.Fatalf("min attempts = %d, want default %d", repo.minAttempts, outboxMinAttempts)
	}
	if repo.called != 1 {
		t.Fatalf("repo called %d times", repo.called)
	}
}

func TestOutboxRetentionJobUsesConfiguredMinAttempts(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{}
	job := buildOutboxRetention(t, repo, 10)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.minAttempts != 10 {
		t.Fatalf("min attempts = %d, want 10", repo.minAttempts)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{err: errors.New("boom")}
	job := buildOutboxRetention(t, repo, 0)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
