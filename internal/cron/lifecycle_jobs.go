package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/bidloop/bidloop-backend/pkg/logger"
)

type auctionOpener interface {
	OpenDueAuctions(ctx context.Context, now time.Time) (int, error)
}

type auctionCloser interface {
	CloseExpiredAuctions(ctx context.Context, now time.Time) (int, error)
}

// OpenAuctionsJobParams configure the activation sweep.
type OpenAuctionsJobParams struct {
	Logger *logger.Logger
	Opener auctionOpener
}

// NewOpenAuctionsJob builds the sweep that activates scheduled auctions
// whose start time has arrived.
func NewOpenAuctionsJob(params OpenAuctionsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Opener == nil {
		return nil, fmt.Errorf("auction opener required")
	}
	return &openAuctionsJob{logg: params.Logger, opener: params.Opener, now: time.Now}, nil
}

type openAuctionsJob struct {
	logg   *logger.Logger
	opener auctionOpener
	now    func() time.Time
}

func (j *openAuctionsJob) Name() string { return "open-auctions" }

func (j *openAuctionsJob) Run(ctx context.Context) error {
	opened, err := j.opener.OpenDueAuctions(ctx, j.now().UTC())
	logCtx := j.logg.WithFields(ctx, map[string]any{"opened": opened})
	if err != nil {
		j.logg.Error(logCtx, "open auctions sweep finished with errors", err)
		return fmt.Errorf("open auctions sweep: %w", err)
	}
	j.logg.Info(logCtx, "open auctions sweep complete")
	return nil
}

// CloseAuctionsJobParams configure the expiry sweep.
type CloseAuctionsJobParams struct {
	Logger *logger.Logger
	Closer auctionCloser
}

// NewCloseAuctionsJob builds the sweep that resolves auctions whose end
// time has passed, declaring winners where bids exist.
func NewCloseAuctionsJob(params CloseAuctionsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Closer == nil {
		return nil, fmt.Errorf("auction closer required")
	}
	return &closeAuctionsJob{logg: params.Logger, closer: params.Closer, now: time.Now}, nil
}

type closeAuctionsJob struct {
	logg   *logger.Logger
	closer auctionCloser
	now    func() time.Time
}

func (j *closeAuctionsJob) Name() string { return "close-auctions" }

func (j *closeAuctionsJob) Run(ctx context.Context) error {
	closed, err := j.closer.CloseExpiredAuctions(ctx, j.now().UTC())
	logCtx := j.logg.WithFields(ctx, map[string]any{"closed": closed})
	if err != nil {
		j.logg.Error(logCtx, "close auctions sweep finished with errors", err)
		return fmt.Errorf("close auctions sweep: %w", err)
	}
	j.logg.Info(logCtx, "close auctions sweep complete")
	return nil
}
