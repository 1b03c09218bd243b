// Package metaforecast fetches question histories from the Metaforecast GraphQL API.
package metaforecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/machinebox/graphql"

	"github.com/rewired-gh/forecastbot/internal/logger"
	"github.com/rewired-gh/forecastbot/internal/models"
)

// DefaultEndpoint is the public Metaforecast GraphQL endpoint.
const DefaultEndpoint = "https://metaforecast.org/api/graphql"

// Query selects which set of questions is fetched.
type Query string

const (
	// QuerySearch fetches every question rated at or above a star threshold.
	QuerySearch Query = "search"
	// QueryFrontpage fetches the questions shown on the Metaforecast front page.
	QueryFrontpage Query = "frontpage"
)

// searchQuery uses " " as a pseudo-wildcard so that every question matches.
const searchQuery = `{
  searchQuestions(input: {query: " ", starsThreshold: %d, limit: %d}) {
    id
    title
    history {
      fetched
      options {
        name
        probability
      }
    }
  }
}`

const frontpageQuery = `{
  frontpage {
    id
    title
    history {
      fetched
      options {
        name
        probability
      }
    }
  }
}`

// ClientConfig holds HTTP transport tuning for the client.
type ClientConfig struct {
	Query               Query
	StarsThreshold      int
	Limit               int
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// Client provides access to the Metaforecast API.
type Client struct {
	endpoint string
	gql      *graphql.Client
	config   ClientConfig
}

// NewClient creates a new Metaforecast client. The HTTP timeout bounds each query.
func NewClient(endpoint string, timeout time.Duration, cfg ClientConfig) (*Client, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	switch cfg.Query {
	case "":
		cfg.Query = QuerySearch
	case QuerySearch, QueryFrontpage:
	default:
		return nil, fmt.Errorf("unknown query %q", cfg.Query)
	}
	if cfg.StarsThreshold <= 0 {
		cfg.StarsThreshold = 4
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 1000
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 2
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.IdleConnTimeout,
		},
	}

	gql := graphql.NewClient(endpoint, graphql.WithHTTPClient(httpClient))
	if logger.Enabled(logger.DebugLevel) {
		gql.Log = func(s string) { logger.Debug("graphql: %s", s) }
	}

	return &Client{endpoint: endpoint, gql: gql, config: cfg}, nil
}

// Query returns the query variant this client issues.
func (c *Client) Query() Query {
	return c.config.Query
}

type apiQuestion struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	History []apiHistory `json:"history"`
}

type apiHistory struct {
	Fetched unixTime    `json:"fetched"`
	Options []apiOption `json:"options"`
}

type apiOption struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
}

type searchResponse struct {
	SearchQuestions []apiQuestion `json:"searchQuestions"`
}

type frontpageResponse struct {
	Frontpage []apiQuestion `json:"frontpage"`
}

// FetchQuestions issues a single query and returns the questions in API order.
// Option readings outside [0,1] or without a name are dropped, as are samples
// without a fetch time.
func (c *Client) FetchQuestions(ctx context.Context) ([]models.Question, error) {
	var raw []apiQuestion

	switch c.config.Query {
	case QueryFrontpage:
		var resp frontpageResponse
		if err := c.gql.Run(ctx, graphql.NewRequest(frontpageQuery), &resp); err != nil {
			return nil, fmt.Errorf("failed to execute frontpage query against %s: %w", c.endpoint, err)
		}
		raw = resp.Frontpage
	default:
		var resp searchResponse
		req := graphql.NewRequest(fmt.Sprintf(searchQuery, c.config.StarsThreshold, c.config.Limit))
		if err := c.gql.Run(ctx, req, &resp); err != nil {
			return nil, fmt.Errorf("failed to execute search query against %s: %w", c.endpoint, err)
		}
		raw = resp.SearchQuestions
	}

	questions := make([]models.Question, 0, len(raw))
	for _, aq := range raw {
		questions = append(questions, toQuestion(aq))
	}
	return questions, nil
}

func toQuestion(aq apiQuestion) models.Question {
	q := models.Question{
		ID:      aq.ID,
		Title:   aq.Title,
		History: make([]models.Sample, 0, len(aq.History)),
	}
	for _, h := range aq.History {
		if h.Fetched.IsZero() {
			logger.Warn("Dropping sample without fetch time for question %s", aq.ID)
			continue
		}
		s := models.Sample{
			Fetched: h.Fetched.Time,
			Options: make([]models.OptionReading, 0, len(h.Options)),
		}
		for _, o := range h.Options {
			reading := models.OptionReading{Name: o.Name, Probability: o.Probability}
			if err := reading.Validate(); err != nil {
				logger.Warn("Dropping reading for question %s at %s: %v", aq.ID, s.Fetched.Format(time.RFC3339), err)
				continue
			}
			s.Options = append(s.Options, reading)
		}
		q.History = append(q.History, s)
	}
	return q
}

// unixTime decodes a fetch timestamp given as Unix seconds, either as a JSON
// number or a numeric string, with optional fractional part.
type unixTime struct {
	time.Time
}

func (u *unixTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		u.Time = time.Time{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid fetched timestamp %q: %w", data, err)
	}
	whole, frac := math.Modf(secs)
	u.Time = time.Unix(int64(whole), int64(math.Round(frac*1e3))*int64(time.Millisecond)).UTC()
	return nil
}
