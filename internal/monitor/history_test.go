package monitor

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rewired-gh/forecastbot/internal/models"
)

var t0 = time.Date(2022, 8, 4, 11, 46, 48, 0, time.UTC)

func sample(at time.Time, readings ...models.OptionReading) models.Sample {
	return models.Sample{Fetched: at, Options: readings}
}

func opt(name string, p float64) models.OptionReading {
	return models.OptionReading{Name: name, Probability: p}
}

func TestBuildHistory_OrdersRowsByTime(t *testing.T) {
	q := models.Question{
		ID:    "q1",
		Title: "Q",
		History: []models.Sample{
			sample(t0.Add(48*time.Hour), opt("A", 0.3)),
			sample(t0, opt("A", 0.1)),
			sample(t0.Add(24*time.Hour), opt("A", 0.2)),
		},
	}

	table, err := BuildHistory(q)
	if err != nil {
		t.Fatalf("BuildHistory: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("rows = %d, want 3", table.Len())
	}
	for i, want := range []float64{0.1, 0.2, 0.3} {
		got, ok := table.Rows[i].Get("A")
		if !ok || got != want {
			t.Errorf("row %d A = %v (present %v), want %v", i, got, ok, want)
		}
	}
	latest, _ := table.Latest()
	if !latest.Fetched.Equal(t0.Add(48 * time.Hour)) {
		t.Errorf("latest fetched = %v", latest.Fetched)
	}
}

func TestBuildHistory_AbsentOptionsAreNotZero(t *testing.T) {
	q := models.Question{
		ID:    "q1",
		Title: "Q",
		History: []models.Sample{
			sample(t0, opt("A", 0.5), opt("B", 0.5)),
			sample(t0.Add(24*time.Hour), opt("A", 0.4), opt("C", 0.6)),
		},
	}

	table, err := BuildHistory(q)
	if err != nil {
		t.Fatalf("BuildHistory: %v", err)
	}
	if want := []string{"A", "B", "C"}; !reflect.DeepEqual(table.Options, want) {
		t.Errorf("Options = %v, want %v", table.Options, want)
	}
	if _, ok := table.Rows[0].Get("C"); ok {
		t.Error("C reported present before it existed")
	}
	if _, ok := table.Rows[1].Get("B"); ok {
		t.Error("B reported present after it was removed")
	}
}

func TestBuildHistory_MergesAndAveragesSameTimestamp(t *testing.T) {
	q := models.Question{
		ID:    "q1",
		Title: "Q",
		History: []models.Sample{
			sample(t0, opt("A", 0.2)),
			sample(t0, opt("A", 0.4), opt("B", 0.6)),
			sample(t0.Add(time.Hour), opt("A", 0.5)),
		},
	}

	table, err := BuildHistory(q)
	if err != nil {
		t.Fatalf("BuildHistory: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("rows = %d, want 2", table.Len())
	}
	if got, _ := table.Rows[0].Get("A"); got < 0.2999 || got > 0.3001 {
		t.Errorf("averaged A = %v, want 0.3", got)
	}
	if got, ok := table.Rows[0].Get("B"); !ok || got != 0.6 {
		t.Errorf("B = %v (present %v), want 0.6", got, ok)
	}
}

func TestBuildHistory_TooFewSnapshots(t *testing.T) {
	tests := []struct {
		name    string
		history []models.Sample
		rows    int
	}{
		{"no history", nil, 0},
		{"single snapshot", []models.Sample{sample(t0, opt("A", 0.5))}, 1},
		{"duplicate timestamps", []models.Sample{sample(t0, opt("A", 0.5)), sample(t0, opt("B", 0.5))}, 1},
		{"empty sample ignored", []models.Sample{sample(t0, opt("A", 0.5)), sample(t0.Add(time.Hour))}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := BuildHistory(models.Question{ID: "q", Title: "Q", History: tt.history})
			if !errors.Is(err, ErrTooFewSnapshots) {
				t.Fatalf("error = %v, want ErrTooFewSnapshots", err)
			}
			if errors.Is(err, ErrNoSignificantChange) {
				t.Error("too-few-snapshots must be distinct from no-significant-change")
			}
			if table == nil || table.Len() != tt.rows {
				t.Errorf("table rows = %v, want %d", table, tt.rows)
			}
		})
	}
}
