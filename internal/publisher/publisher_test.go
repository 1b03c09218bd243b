package publisher

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/forecastbot/internal/logger"
)

type recordingPoster struct {
	texts []string
	times []time.Time
	err   error
}

func (r *recordingPoster) Post(_ context.Context, text string) error {
	r.texts = append(r.texts, text)
	r.times = append(r.times, time.Now())
	return r.err
}

func TestPublish_DryRunLogsWithoutPosting(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWriter(&buf, "info", "json")

	poster := &recordingPoster{}
	p, err := New(poster, true, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := p.Publish(context.Background(), "q1", "hello"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(poster.texts) != 0 {
		t.Errorf("dry run called poster %d time(s)", len(poster.texts))
	}
	if !strings.Contains(buf.String(), "Would post for q1: hello") {
		t.Errorf("dry-run message not logged: %q", buf.String())
	}
}

func TestPublish_DryRunAllowsNilPoster(t *testing.T) {
	if _, err := New(nil, true, 0); err != nil {
		t.Errorf("New(nil, dryRun) error = %v", err)
	}
	if _, err := New(nil, false, 0); !errors.Is(err, ErrNoPoster) {
		t.Errorf("New(nil, live) error = %v, want ErrNoPoster", err)
	}
}

func TestPublish_LivePostsOnce(t *testing.T) {
	logger.InitWriter(&bytes.Buffer{}, "error", "json")
	poster := &recordingPoster{}
	p, _ := New(poster, false, time.Millisecond)

	if err := p.Publish(context.Background(), "q1", "text one"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(poster.texts) != 1 || poster.texts[0] != "text one" {
		t.Errorf("posted %v, want [text one]", poster.texts)
	}
}

func TestPublish_PacesConsecutivePosts(t *testing.T) {
	logger.InitWriter(&bytes.Buffer{}, "error", "json")
	poster := &recordingPoster{}
	interval := 50 * time.Millisecond
	p, _ := New(poster, false, interval)

	for i := 0; i < 3; i++ {
		if err := p.Publish(context.Background(), "q", "t"); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	for i := 1; i < len(poster.times); i++ {
		// Small tolerance for timer granularity.
		if gap := poster.times[i].Sub(poster.times[i-1]); gap < interval-5*time.Millisecond {
			t.Errorf("gap between post %d and %d = %v, want >= %v", i-1, i, gap, interval)
		}
	}
}

func TestPublish_ReturnsPosterError(t *testing.T) {
	logger.InitWriter(&bytes.Buffer{}, "error", "json")
	sentinel := errors.New("rate limited")
	poster := &recordingPoster{err: sentinel}
	p, _ := New(poster, false, time.Millisecond)

	err := p.Publish(context.Background(), "q9", "text")
	if !errors.Is(err, sentinel) {
		t.Fatalf("Publish error = %v, want wrapping %v", err, sentinel)
	}
	if !strings.Contains(err.Error(), "q9") {
		t.Errorf("error %q does not name the question", err)
	}
	if len(poster.texts) != 1 {
		t.Errorf("poster called %d time(s), want exactly 1", len(poster.texts))
	}
}

func TestPublish_CancelledWhileWaiting(t *testing.T) {
	logger.InitWriter(&bytes.Buffer{}, "error", "json")
	poster := &recordingPoster{}
	p, _ := New(poster, false, time.Hour)

	if err := p.Publish(context.Background(), "q1", "first"); err != nil {
		t.Fatalf("first Publish: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, "q2", "second"); err == nil {
		t.Error("expected error when context is cancelled during pacing")
	}
	if len(poster.texts) != 1 {
		t.Errorf("poster called %d time(s), want 1", len(poster.texts))
	}
}

func TestDryRun(t *testing.T) {
	dry, err := New(nil, true, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !dry.DryRun() {
		t.Error("DryRun() = false for a dry-run publisher")
	}

	live, err := New(&recordingPoster{}, false, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if live.DryRun() {
		t.Error("DryRun() = true for a live publisher")
	}
}
