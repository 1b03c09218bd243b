// Package twitter posts messages through the Twitter/X API v2 using OAuth 1.0a
// user-context credentials.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	twauth "github.com/dghubble/oauth1/twitter"
)

// DefaultAPIURL is the base URL of the Twitter/X API.
const DefaultAPIURL = "https://api.twitter.com"

// ReplySettingsMentioned limits replies to accounts mentioned in the post.
const ReplySettingsMentioned = "mentionedUsers"

// Credentials are the OAuth 1.0a consumer and access token pairs.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// Validate reports the first missing credential.
func (c Credentials) Validate() error {
	switch {
	case c.ConsumerKey == "":
		return errors.New("consumer key is required")
	case c.ConsumerSecret == "":
		return errors.New("consumer secret is required")
	case c.AccessToken == "":
		return errors.New("access token is required")
	case c.AccessTokenSecret == "":
		return errors.New("access token secret is required")
	}
	return nil
}

// Client posts tweets on behalf of one account.
type Client struct {
	apiURL        string
	httpClient    *http.Client
	replySettings string
}

// NewClient creates a Client whose requests are signed with creds.
func NewClient(apiURL string, creds Credentials, timeout time.Duration) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Twitter credentials: %w", err)
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)

	httpClient := config.Client(context.Background(), token)
	httpClient.Timeout = timeout

	return &Client{
		apiURL:        strings.TrimRight(apiURL, "/"),
		httpClient:    httpClient,
		replySettings: ReplySettingsMentioned,
	}, nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter API returned %d: %s", e.StatusCode, e.Body)
}

type createTweetRequest struct {
	Text          string `json:"text"`
	ReplySettings string `json:"reply_settings,omitempty"`
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type meResponse struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

// Post publishes text as a new tweet. It makes exactly one request.
func (c *Client) Post(ctx context.Context, text string) error {
	_, err := c.CreateTweet(ctx, text)
	return err
}

// CreateTweet publishes text and returns the new tweet's ID.
func (c *Client) CreateTweet(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(createTweetRequest{Text: text, ReplySettings: c.replySettings})
	if err != nil {
		return "", fmt.Errorf("failed to encode tweet: %w", err)
	}

	var resp createTweetResponse
	if err := c.do(ctx, http.MethodPost, "/2/tweets", payload, &resp); err != nil {
		return "", fmt.Errorf("failed to create tweet: %w", err)
	}
	return resp.Data.ID, nil
}

// Username returns the handle of the authenticated account. It doubles as a
// credential check before any post is attempted.
func (c *Client) Username(ctx context.Context) (string, error) {
	var resp meResponse
	if err := c.do(ctx, http.MethodGet, "/2/users/me", nil, &resp); err != nil {
		return "", fmt.Errorf("failed to get username: %w", err)
	}
	if resp.Data.Username == "" {
		return "", errors.New("failed to get username: empty response")
	}
	return resp.Data.Username, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// PINAuthorizer walks an account owner through the PIN-based (out-of-band)
// OAuth 1.0a flow to obtain access tokens for a consumer key.
type PINAuthorizer struct {
	config        *oauth1.Config
	requestToken  string
	requestSecret string
}

// NewPINAuthorizer creates an authorizer for the given consumer credentials.
func NewPINAuthorizer(consumerKey, consumerSecret string) *PINAuthorizer {
	return &PINAuthorizer{
		config: &oauth1.Config{
			ConsumerKey:    consumerKey,
			ConsumerSecret: consumerSecret,
			CallbackURL:    "oob",
			Endpoint:       twauth.AuthorizeEndpoint,
		},
	}
}

// AuthorizationURL obtains a request token and returns the URL the account
// owner must open to receive a PIN.
func (a *PINAuthorizer) AuthorizationURL() (string, error) {
	token, secret, err := a.config.RequestToken()
	if err != nil {
		return "", fmt.Errorf("failed to get request token: %w", err)
	}
	a.requestToken, a.requestSecret = token, secret

	u, err := a.config.AuthorizationURL(token)
	if err != nil {
		return "", fmt.Errorf("failed to build authorization URL: %w", err)
	}
	return u.String(), nil
}

// Exchange trades the PIN for an access token and secret.
func (a *PINAuthorizer) Exchange(pin string) (string, string, error) {
	if a.requestToken == "" {
		return "", "", errors.New("AuthorizationURL must be called first")
	}
	token, secret, err := a.config.AccessToken(a.requestToken, a.requestSecret, strings.TrimSpace(pin))
	if err != nil {
		return "", "", fmt.Errorf("failed to get access token: %w", err)
	}
	return token, secret, nil
}
