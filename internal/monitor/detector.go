package monitor

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rewired-gh/forecastbot/internal/models"
)

var (
	// ErrStale reports a question whose latest snapshot predates the freshness cutoff.
	ErrStale = errors.New("latest snapshot is stale")
	// ErrNoSignificantChange reports a question where no option moved by at least the threshold.
	ErrNoSignificantChange = errors.New("no option meets the change threshold")
)

// Detector compares the two most recent snapshots of a HistoryTable.
//
// Only the last two rows are compared, which assumes rows are roughly one
// polling period (a day) apart. Nothing checks that assumption; the freshness
// cutoff is the only guard against a market that stopped updating.
type Detector struct {
	// Threshold is the minimum absolute probability change (0-1 scale) for an
	// option to be selected. Options meeting it exactly are selected.
	Threshold float64
}

// Detection is the outcome of a successful Detect call.
type Detection struct {
	QuestionID string
	Latest     time.Time
	Previous   time.Time
	// Ranked holds every option present in both snapshots, by latest probability descending.
	Ranked []models.OptionChange
	// Selected is the subset of Ranked whose |delta| meets the threshold, same order.
	Selected []models.OptionChange
}

// Detect computes per-option changes between the latest and second-latest rows.
// It returns an error wrapping ErrTooFewSnapshots, ErrStale or
// ErrNoSignificantChange when the question should be skipped.
func (d Detector) Detect(table *HistoryTable, cutoff time.Time) (Detection, error) {
	n := table.Len()
	if n < 2 {
		return Detection{}, fmt.Errorf("%w: question %s has %d row(s)", ErrTooFewSnapshots, table.QuestionID, n)
	}

	latest := table.Rows[n-1]
	previous := table.Rows[n-2]
	if latest.Fetched.Before(cutoff) {
		return Detection{}, fmt.Errorf("%w: question %s latest %s is before %s",
			ErrStale, table.QuestionID, latest.Fetched.Format(time.RFC3339), cutoff.Format(time.RFC3339))
	}

	det := Detection{
		QuestionID: table.QuestionID,
		Latest:     latest.Fetched,
		Previous:   previous.Fetched,
		Ranked:     Changes(table.Options, previous, latest),
	}

	sort.SliceStable(det.Ranked, func(i, j int) bool {
		return det.Ranked[i].Probability > det.Ranked[j].Probability
	})

	det.Selected = Select(det.Ranked, d.Threshold)
	if len(det.Selected) == 0 {
		return det, fmt.Errorf("%w: question %s (threshold %.3f)", ErrNoSignificantChange, table.QuestionID, d.Threshold)
	}
	return det, nil
}

// Changes returns latest minus previous for every name in options that is
// present in both rows, in the order of options. A name missing from either
// row has no defined delta and is left out.
func Changes(options []string, previous, latest Row) []models.OptionChange {
	changes := make([]models.OptionChange, 0, len(options))
	for _, name := range options {
		cur, ok := latest.Get(name)
		if !ok {
			continue
		}
		prev, ok := previous.Get(name)
		if !ok {
			continue
		}
		changes = append(changes, models.OptionChange{
			Name:        name,
			Probability: cur,
			Delta:       cur - prev,
		})
	}
	return changes
}

// deltaEpsilon absorbs float64 subtraction error, so that 0.40 -> 0.45 meets
// a 0.05 threshold.
const deltaEpsilon = 1e-9

// Select keeps the changes whose absolute delta is at least threshold,
// preserving order.
func Select(changes []models.OptionChange, threshold float64) []models.OptionChange {
	var selected []models.OptionChange
	for _, c := range changes {
		if math.Abs(c.Delta) >= threshold-deltaEpsilon {
			selected = append(selected, c)
		}
	}
	return selected
}
