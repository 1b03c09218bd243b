// Package monitor turns fetched question histories into posts: it pivots each
// history, detects significant moves between the two latest snapshots, and
// hands qualifying questions to the composer and publisher.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/forecastbot/internal/logger"
	"github.com/rewired-gh/forecastbot/internal/models"
)

// DefaultFreshnessWindow bounds how old a question's latest snapshot may be.
const DefaultFreshnessWindow = 24 * time.Hour

// DefaultThreshold is the default minimum probability change.
const DefaultThreshold = 0.05

// Fetcher returns the questions to examine, in the order they should be processed.
type Fetcher interface {
	FetchQuestions(ctx context.Context) ([]models.Question, error)
}

// Composer renders a qualifying question's changes into post text.
type Composer interface {
	Compose(title, id string, changes []models.OptionChange) string
}

// Publisher delivers post text for a question.
type Publisher interface {
	Publish(ctx context.Context, questionID, text string) error
}

// Config controls change detection for a run.
type Config struct {
	Threshold       float64
	FreshnessWindow time.Duration
	Now             func() time.Time
}

// DefaultConfig returns a Config with the default threshold and freshness
// window on the wall clock.
func DefaultConfig() Config {
	return Config{
		Threshold:       DefaultThreshold,
		FreshnessWindow: DefaultFreshnessWindow,
		Now:             time.Now,
	}
}

// Summary counts what happened to the questions of one run.
type Summary struct {
	RunID     string
	Fetched   int
	Invalid   int
	Skipped   int
	Qualified int
	Published int
	Failed    int
	Duration  time.Duration
}

// Monitor runs fetch, detect and publish batches.
type Monitor struct {
	fetcher   Fetcher
	composer  Composer
	publisher Publisher
	detector  Detector
	config    Config
}

// New creates a Monitor. A nil clock or non-positive freshness window falls
// back to the defaults.
func New(fetcher Fetcher, composer Composer, publisher Publisher, config Config) *Monitor {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.FreshnessWindow <= 0 {
		config.FreshnessWindow = DefaultFreshnessWindow
	}
	return &Monitor{
		fetcher:   fetcher,
		composer:  composer,
		publisher: publisher,
		detector:  Detector{Threshold: config.Threshold},
		config:    config,
	}
}

// Run performs one batch: a single fetch followed by sequential processing
// of every returned question in fetch order. A fetch failure aborts the run;
// per-question skips and post failures are logged and do not affect other
// questions. A cancelled context stops the run between questions.
func (m *Monitor) Run(ctx context.Context) (Summary, error) {
	start := m.config.Now()
	summary := Summary{RunID: uuid.New().String()}
	cutoff := start.Add(-m.config.FreshnessWindow)

	logger.Info("Starting run %s (threshold: %.3f, cutoff: %s)", summary.RunID, m.config.Threshold, cutoff.Format(time.RFC3339))

	questions, err := m.fetcher.FetchQuestions(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to fetch questions: %w", err)
	}
	summary.Fetched = len(questions)
	logger.Info("Fetched %d questions", len(questions))

	for i := range questions {
		if err := ctx.Err(); err != nil {
			summary.Duration = m.config.Now().Sub(start)
			return summary, err
		}
		m.processQuestion(ctx, &questions[i], cutoff, &summary)
	}

	summary.Duration = m.config.Now().Sub(start)
	logger.Info("Run %s complete in %v: %d fetched, %d invalid, %d skipped, %d qualified, %d published, %d failed",
		summary.RunID, summary.Duration, summary.Fetched, summary.Invalid, summary.Skipped,
		summary.Qualified, summary.Published, summary.Failed)
	return summary, nil
}

func (m *Monitor) processQuestion(ctx context.Context, q *models.Question, cutoff time.Time, summary *Summary) {
	if err := q.Validate(); err != nil {
		summary.Invalid++
		logger.Warn("Skipping invalid question %q: %v", q.ID, err)
		return
	}

	table, err := BuildHistory(*q)
	if err != nil {
		skip(q.ID, err, summary)
		return
	}
	det, err := m.detector.Detect(table, cutoff)
	if err != nil {
		skip(q.ID, err, summary)
		return
	}

	summary.Qualified++
	text := m.composer.Compose(q.Title, q.ID, det.Selected)
	if err := m.publisher.Publish(ctx, q.ID, text); err != nil {
		summary.Failed++
		logger.Error("Failed to publish question %s: %v", q.ID, err)
		return
	}
	summary.Published++
}

func skip(id string, reason error, summary *Summary) {
	summary.Skipped++
	if errors.Is(reason, ErrTooFewSnapshots) {
		logger.Warn("Skipping question %s: %v", id, reason)
		return
	}
	logger.Debug("Skipping question %s: %v", id, reason)
}
