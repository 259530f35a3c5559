package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bidloop/bidloop-backend/pkg/logger"
)

type fakeSweeper struct {
	count int
	err   error
	calls int
	last  time.Time
}

func (f *fakeSweeper) OpenDueAuctions(ctx context.Context, now time.Time) (int, error) {
	f.calls++
	f.last = now
	return f.count, f.err
}

func (f *fakeSweeper) CloseExpiredAuctions(ctx context.Context, now time.Time) (int, error) {
	f.calls++
	f.last = now
	return f.count, f.err
}

func TestOpenAuctionsJobRuns(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	sweeper := &fakeSweeper{count: 3}
	job, err := NewOpenAuctionsJob(OpenAuctionsJobParams{Logger: logg, Opener: sweeper})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "open-auctions" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.calls)
	}
	if sweeper.last.IsZero() {
		t.Fatal("sweep time not forwarded")
	}
}

func TestCloseAuctionsJobPropagatesErrors(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	sweeper := &fakeSweeper{err: errors.New("boom")}
	job, err := NewCloseAuctionsJob(CloseAuctionsJobParams{Logger: logg, Closer: sweeper})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep error to surface")
	}
}

type fakeRetentionRepo struct {
	cutoff  time.Time
	deleted int64
}

func (f *fakeRetentionRepo) DeletePublishedBefore(cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, nil
}

func TestOutboxRetentionJobUsesConfiguredWindow(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	repo := &fakeRetentionRepo{deleted: 7}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logg, Repository: repo, Retention: 10})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	wantBefore := time.Now().UTC().Add(-9 * 24 * time.Hour)
	if !repo.cutoff.Before(wantBefore) {
		t.Fatalf("cutoff %v not inside the 10 day window", repo.cutoff)
	}
}
