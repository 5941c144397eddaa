package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Wraps every failure from the score service. Callers treat these as a missing signal, not a fatal error.
var ErrService = errors.New("score service error")

const DefaultHost = "https://commentanalyzer.googleapis.com"

type Config struct {
	// Base URL of the service; the request path is appended.
	Host      string
	APIKey    string
	Attribute string
	Languages []string

	// Total attempts per Score call, including the first. Zero means 3.
	MaxAttempts int
	// Per-attempt HTTP timeout. Zero means 10 seconds.
	Timeout time.Duration
	// Initial backoff between attempts. Zero means 500ms.
	Backoff time.Duration

	Logger *slog.Logger
}

// Client for a Perspective-style comment analysis API, returning the summary score of one attribute (eg, TOXICITY or THREAT).
type Client struct {
	Client      http.Client
	Host        string
	APIKey      string
	Attribute   string
	Languages   []string
	MaxAttempts int
	Backoff     time.Duration

	logger *slog.Logger
}

func NewClient(cfg Config) *Client {
	c := &Client{
		Host:        cfg.Host,
		APIKey:      cfg.APIKey,
		Attribute:   cfg.Attribute,
		Languages:   cfg.Languages,
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.Backoff,
		logger:      cfg.Logger,
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Attribute == "" {
		c.Attribute = "TOXICITY"
	}
	if len(c.Languages) == 0 {
		c.Languages = []string{"en"}
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.Client.Transport = otelhttp.NewTransport(http.DefaultTransport)
	c.Client.Timeout = cfg.Timeout
	if c.Client.Timeout == 0 {
		c.Client.Timeout = 10 * time.Second
	}
	return c
}

// schema: https://developers.perspectiveapi.com/s/about-the-api-methods
type analyzeRequest struct {
	Comment             analyzeComment             `json:"comment"`
	Languages           []string                   `json:"languages,omitempty"`
	RequestedAttributes map[string]json.RawMessage `json:"requestedAttributes"`
	DoNotStore          bool                       `json:"doNotStore"`
}

type analyzeComment struct {
	Text string `json:"text"`
}

type AnalyzeResp struct {
	AttributeScores map[string]AnalyzeResp_Attribute `json:"attributeScores"`
}

type AnalyzeResp_Attribute struct {
	SummaryScore AnalyzeResp_Score `json:"summaryScore"`
}

type AnalyzeResp_Score struct {
	Value float64 `json:"value"`
	Type  string  `json:"type"`
}

// Returns the attribute summary score, in [0, 1]. Connection errors, 429, and 5xx responses are retried with exponential backoff, up to MaxAttempts in total; everything else fails right away. All errors wrap [ErrService].
func (c *Client) Score(ctx context.Context, text string) (float64, error) {
	body, err := json.Marshal(analyzeRequest{
		Comment:             analyzeComment{Text: text},
		Languages:           c.Languages,
		RequestedAttributes: map[string]json.RawMessage{c.Attribute: json.RawMessage(`{}`)},
		DoNotStore:          true,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: encoding request: %v", ErrService, err)
	}

	var score float64
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(c.MaxAttempts-1), retry.NewExponential(c.Backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		s, retryable, err := c.analyze(ctx, body)
		if err != nil {
			if retryable {
				c.logger.Warn("score request failed, will retry", "attempt", attempt, "err", err)
				return retry.RetryableError(err)
			}
			return err
		}
		score = s
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrService, err)
	}
	return score, nil
}

func (c *Client) analyze(ctx context.Context, body []byte) (float64, bool, error) {
	u := c.Host + "/v1alpha1/comments:analyze"
	if c.APIKey != "" {
		u += "?key=" + url.QueryEscape(c.APIKey)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "coercion-labeler/"+versioninfo.Short())

	start := time.Now()
	defer func() {
		scoreAPIDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := c.Client.Do(req)
	if err != nil {
		scoreAPICount.WithLabelValues("error").Inc()
		return 0, ctx.Err() == nil, fmt.Errorf("score request failed: %w", err)
	}
	defer res.Body.Close()

	scoreAPICount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
		return 0, true, fmt.Errorf("score request failed statusCode=%d", res.StatusCode)
	}
	if res.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("score request failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, true, fmt.Errorf("failed to read score resp body: %w", err)
	}
	var respObj AnalyzeResp
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		return 0, false, fmt.Errorf("failed to parse score resp JSON: %w", err)
	}
	attr, ok := respObj.AttributeScores[c.Attribute]
	if !ok {
		return 0, false, fmt.Errorf("score response missing attribute %s", c.Attribute)
	}
	return attr.SummaryScore.Value, false, nil
}
