package monitor

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rewired-gh/forecastbot/internal/models"
)

// ErrTooFewSnapshots reports a question whose history holds fewer than two
// distinct fetch times, so no delta can be computed.
var ErrTooFewSnapshots = errors.New("too few snapshots")

// Row is one snapshot of a question: every option observed at Fetched.
// Options not observed at that time are absent from Probabilities.
type Row struct {
	Fetched       time.Time
	Probabilities map[string]float64
}

// Get returns the option's probability and whether it was observed in this row.
func (r Row) Get(name string) (float64, bool) {
	p, ok := r.Probabilities[name]
	return p, ok
}

// HistoryTable is a question's history pivoted into one row per fetch time
// (ascending) and one column per option name.
type HistoryTable struct {
	QuestionID string
	// Options lists every option name seen in any row, in order of first appearance.
	Options []string
	Rows    []Row
}

// Len returns the number of rows.
func (t *HistoryTable) Len() int {
	return len(t.Rows)
}

// Latest returns the most recent row.
func (t *HistoryTable) Latest() (Row, bool) {
	if len(t.Rows) == 0 {
		return Row{}, false
	}
	return t.Rows[len(t.Rows)-1], true
}

type cell struct {
	sum   float64
	count int
}

// BuildHistory pivots a question's flat sample list into a HistoryTable.
//
// Samples sharing a fetch time are merged into one row; repeated readings of
// the same option at the same time are averaged. Samples with no option
// readings contribute no row. When fewer than two rows result, the table is
// still returned together with an error wrapping ErrTooFewSnapshots.
func BuildHistory(q models.Question) (*HistoryTable, error) {
	table := &HistoryTable{QuestionID: q.ID}

	cells := make(map[int64]map[string]*cell)
	times := make(map[int64]time.Time)
	seen := make(map[string]bool)

	for _, sample := range q.History {
		if len(sample.Options) == 0 {
			continue
		}
		key := sample.Fetched.UnixNano()
		row, ok := cells[key]
		if !ok {
			row = make(map[string]*cell)
			cells[key] = row
			times[key] = sample.Fetched
		}
		for _, opt := range sample.Options {
			c, ok := row[opt.Name]
			if !ok {
				c = &cell{}
				row[opt.Name] = c
			}
			c.sum += opt.Probability
			c.count++

			if !seen[opt.Name] {
				seen[opt.Name] = true
				table.Options = append(table.Options, opt.Name)
			}
		}
	}

	keys := make([]int64, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	table.Rows = make([]Row, 0, len(keys))
	for _, k := range keys {
		probs := make(map[string]float64, len(cells[k]))
		for name, c := range cells[k] {
			probs[name] = c.sum / float64(c.count)
		}
		table.Rows = append(table.Rows, Row{Fetched: times[k], Probabilities: probs})
	}

	if len(table.Rows) < 2 {
		return table, fmt.Errorf("%w: question %s has %d row(s)", ErrTooFewSnapshots, q.ID, len(table.Rows))
	}
	return table, nil
}
