// Package fetch retrieves a remote discussion thread page and scrapes it
// into an ordered list of raw post tuples.
//
// From the mirror core's perspective this package is an opaque supplier:
// one blocking call per thread URL that either returns posts or fails with a
// distinguishable *Error. It enforces its own timeout and does not retry.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kuroyagi/resmirror/anchor"
	"github.com/kuroyagi/resmirror/safeurl"
)

// RawPost is one scraped post tuple, exactly what the cache stores.
type RawPost struct {
	Seq      *int64
	PostedAt string
	Body     string
	Anchors  anchor.Set
}

// Result is the outcome of fetching one thread page.
type Result struct {
	Title string
	Posts []RawPost
}

// Error is a fetch failure: network, non-2xx, or unparsable content.
// It carries the thread URL and a human-readable cause.
type Error struct {
	URL        string
	StatusCode int // 0 when the request never completed
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Config configures the fetcher.
type Config struct {
	Timeout  time.Duration `yaml:"timeout"`   // HTTP timeout. Default: 30s.
	MaxBytes int64         `yaml:"max_bytes"` // Max response body size. Default: safeurl.MaxPageBody.
	// UserAgent sent with requests.
	UserAgent string `yaml:"user_agent"`
	// URLValidator validates URLs before fetch (SSRF prevention).
	// Default: safeurl.Validate.
	URLValidator func(string) error `yaml:"-"`
	// Selectors locate posts inside the page. Zero values use defaults.
	Selectors Selectors `yaml:"selectors"`
}

// Selectors describe where posts live in the thread page DOM.
type Selectors struct {
	Post    string `yaml:"post"`     // CSS selector for one post block
	Seq     string `yaml:"seq"`      // selector for the ordinal element within a post
	Date    string `yaml:"date"`     // selector for the timestamp element within a post
	Body    string `yaml:"body"`     // selector for the body element within a post
	SeqAttr string `yaml:"seq_attr"` // attribute on the post block carrying the ordinal, tried first
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = safeurl.MaxPageBody
	}
	if c.UserAgent == "" {
		c.UserAgent = "resmirror/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = safeurl.Validate
	}
	if c.Selectors.Post == "" {
		c.Selectors.Post = "div.post, article.post, li.post"
	}
	if c.Selectors.Seq == "" {
		c.Selectors.Seq = ".number, .post-number"
	}
	if c.Selectors.Date == "" {
		c.Selectors.Date = ".date, time"
	}
	if c.Selectors.Body == "" {
		c.Selectors.Body = ".body, .post-body, .message"
	}
	if c.Selectors.SeqAttr == "" {
		c.Selectors.SeqAttr = "data-seq"
	}
}

// Fetcher performs thread page requests with SSRF protection on redirects.
type Fetcher struct {
	client *http.Client
	config Config
	parser *parser
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
		parser: newParser(cfg.Selectors),
	}
}

// FetchThread retrieves and scrapes one thread page. Any failure (blocked
// URL, network error, non-2xx status, unparsable content) is returned as a
// *Error and the caller's cache state is left untouched.
func (f *Fetcher) FetchThread(ctx context.Context, url string) (*Result, error) {
	if err := f.config.URLValidator(url); err != nil {
		return nil, &Error{URL: url, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Cause: err}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Cause: errors.New(http.StatusText(resp.StatusCode))}
	}

	body, err := safeurl.LimitedReadAll(resp.Body, f.config.MaxBytes)
	if err != nil {
		return nil, &Error{URL: url, Cause: fmt.Errorf("read body: %w", err)}
	}

	res, err := f.parser.parse(body)
	if err != nil {
		return nil, &Error{URL: url, Cause: err}
	}
	if len(res.Posts) == 0 {
		return nil, &Error{URL: url, Cause: errors.New("no posts found in page")}
	}
	return res, nil
}
