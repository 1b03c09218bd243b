// Package models defines the core domain entities: questions, their
// probability history, and detected option changes.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Question is a forecasting question as returned by a single fetch.
// Identity is ID; the value is never mutated after the fetch.
type Question struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	History []Sample `json:"history"`
}

// Sample is one snapshot of all option probabilities at a fetch time.
type Sample struct {
	Fetched time.Time       `json:"fetched"`
	Options []OptionReading `json:"options"`
}

// OptionReading is a single option's probability within a sample.
type OptionReading struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
}

// OptionChange is an option's latest probability together with its change
// against the immediately preceding snapshot.
type OptionChange struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
	Delta       float64 `json:"delta"`
}

// Validate checks question field constraints.
func (q *Question) Validate() error {
	if q.ID == "" {
		return errors.New("question ID must not be empty")
	}
	if q.Title == "" {
		return errors.New("question title must not be empty")
	}
	for i, s := range q.History {
		if s.Fetched.IsZero() {
			return fmt.Errorf("history[%d]: fetched time must be set", i)
		}
		for _, o := range s.Options {
			if err := o.Validate(); err != nil {
				return fmt.Errorf("history[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// Validate checks option reading constraints.
func (o OptionReading) Validate() error {
	if o.Name == "" {
		return errors.New("option name must not be empty")
	}
	if o.Probability < 0.0 || o.Probability > 1.0 {
		return fmt.Errorf("option %q: probability must be between 0.0 and 1.0", o.Name)
	}
	return nil
}
