// Package publisher sends composed messages to a posting sink, or logs them
// in dry-run mode.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/rewired-gh/forecastbot/internal/logger"
)

// DefaultMinInterval is the minimum spacing between two posts.
const DefaultMinInterval = time.Second

// ErrNoPoster is returned by New when live posting is requested without a sink.
var ErrNoPoster = errors.New("live posting requires a poster")

// Poster is the posting capability: one call publishes one message.
type Poster interface {
	Post(ctx context.Context, text string) error
}

// Publisher posts each message at most once, pacing consecutive posts.
type Publisher struct {
	poster  Poster
	dryRun  bool
	limiter *rate.Limiter
}

// New creates a Publisher. poster may be nil when dryRun is set.
func New(poster Poster, dryRun bool, minInterval time.Duration) (*Publisher, error) {
	if !dryRun && poster == nil {
		return nil, ErrNoPoster
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Publisher{
		poster:  poster,
		dryRun:  dryRun,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}, nil
}

// DryRun reports whether messages are only logged.
func (p *Publisher) DryRun() bool {
	return p.dryRun
}

// Publish sends text for the given question. In dry-run mode the message is
// logged at info level and nothing else happens. Otherwise it waits until the
// minimum interval since the previous post has elapsed and calls the poster
// exactly once; a failure is returned unretried.
func (p *Publisher) Publish(ctx context.Context, questionID, text string) error {
	if p.dryRun {
		logger.Info("Would post for %s: %s", questionID, text)
		return nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting to post %s: %w", questionID, err)
	}

	logger.Debug("Posting for %s: %s", questionID, text)
	if err := p.poster.Post(ctx, text); err != nil {
		return fmt.Errorf("failed to post %s: %w", questionID, err)
	}
	return nil
}
