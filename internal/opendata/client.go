package opendata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	userAgent    = "Mozilla/5.0"
	acceptHeader = "application/json,text/plain,*/*"

	// DefaultTimeout bounds a single candidate request.
	DefaultTimeout = 35 * time.Second

	maxBodyBytes = 10 << 20
)

// ResolutionError reports that every candidate endpoint failed. It
// carries the URLs that were attempted and the last underlying error.
type ResolutionError struct {
	Attempts []string
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("all %d candidate endpoints failed (tried: %s): %v",
		len(e.Attempts), strings.Join(e.Attempts, ", "), e.Err)
}

// Unwrap returns the last underlying error.
func (e *ResolutionError) Unwrap() error { return e.Err }

// Result is one successful fetch: the raw records extracted from the
// payload and the URL that produced them.
type Result struct {
	Records []map[string]any
	URL     string
}

// Client fetches the dataset from the open-data API, walking the
// candidate URLs until one answers.
type Client struct {
	HTTP   *http.Client
	Base   string
	Hint   string
	APIKey string
	Log    logrus.FieldLogger
}

// NewClient builds a client with the default portal base. hint is an
// optional override URL tried before the fallback candidates; apiKey may
// be empty for the public dataset.
func NewClient(hint, apiKey string, timeout time.Duration, log logrus.FieldLogger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		HTTP:   &http.Client{Timeout: timeout},
		Base:   DefaultBaseURL,
		Hint:   hint,
		APIKey: apiKey,
		Log:    log.WithField("component", "opendata"),
	}
}

// Fetch tries each candidate URL in order and returns the records from
// the first one that answers with parseable JSON. A single pass over the
// list, first success wins; it fails with a *ResolutionError only after
// every candidate has failed.
func (c *Client) Fetch(ctx context.Context) (*Result, error) {
	var (
		attempts []string
		lastErr  error
	)

	for _, candidate := range Candidates(c.Hint, c.Base) {
		finalURL := withPagination(candidate)
		attempts = append(attempts, finalURL)

		payload, err := c.fetchJSON(ctx, finalURL)
		if err != nil {
			c.Log.WithError(err).WithField("url", finalURL).Debug("candidate failed")
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		records := ExtractRecords(payload)
		c.Log.WithFields(logrus.Fields{"url": finalURL, "records": len(records)}).Info("fetched dataset")
		return &Result{Records: records, URL: finalURL}, nil
	}

	return nil, &ResolutionError{Attempts: attempts, Err: lastErr}
}

func (c *Client) fetchJSON(ctx context.Context, url string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	if c.APIKey != "" {
		req.Header.Set("Authorization", c.APIKey)
		req.Header.Set("X-API-KEY", c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, snippet)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
