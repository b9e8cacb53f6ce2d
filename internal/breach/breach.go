// Package breach checks secrets against a k-anonymity exposure index
// (the Pwned Passwords range API protocol).
//
// Only the first five hex characters of the secret's SHA-1 digest ever leave
// the process; the index returns candidate suffixes and the match happens
// locally. An unreachable index degrades to an indeterminate verdict rather
// than an error: the caller's policy decides what "unknown" means (the
// default here is fail-open).
package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mvolkovs/passvault/internal/logging"
	"github.com/mvolkovs/passvault/internal/observability"
)

// DefaultRangeURL is the public Pwned Passwords range endpoint.
const DefaultRangeURL = "https://api.pwnedpasswords.com/range"

// Verdict is the outcome of one exposure lookup. Checked=false means the
// index was unreachable and Exposed is indeterminate, not false.
type Verdict struct {
	Exposed bool
	Checked bool
}

// RangeClient fetches the candidate digest suffixes for a 5-character digest
// prefix. Implementations must be safe for concurrent use.
type RangeClient interface {
	Lookup(ctx context.Context, prefix string) ([]string, error)
}

// HTTPRangeClient implements RangeClient over the range API's plain-text
// response format (one "SUFFIX:COUNT" pair per line).
type HTTPRangeClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRangeClient builds a client for the index at baseURL. The
// *http.Client is injected so tests can point it at a stub server.
func NewHTTPRangeClient(baseURL string, client *http.Client) *HTTPRangeClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRangeClient{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (c *HTTPRangeClient) Lookup(ctx context.Context, prefix string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+prefix, nil)
	if err != nil {
		return nil, fmt.Errorf("range request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("range lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("range lookup: unexpected status %s", resp.Status)
	}

	var suffixes []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		suffix, _, _ := strings.Cut(line, ":")
		suffixes = append(suffixes, suffix)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("range response: %w", err)
	}
	return suffixes, nil
}

// Checker evaluates secrets against the exposure index.
type Checker struct {
	client  RangeClient
	timeout time.Duration
	logger  logging.Logger
	metrics *observability.Metrics
}

// NewChecker constructs a Checker. timeout bounds each lookup; metrics may
// be nil.
func NewChecker(client RangeClient, timeout time.Duration, logger logging.Logger, metrics *observability.Metrics) *Checker {
	return &Checker{
		client:  client,
		timeout: timeout,
		logger:  logger.With("module", "breach_checker"),
		metrics: metrics,
	}
}

// Check reports whether secret appears in the exposure index. The secret and
// its full digest never leave the process; only the 5-character digest prefix
// is transmitted. Index failures yield Verdict{Checked: false} and a logged
// diagnostic, never an error the caller has to handle.
func (c *Checker) Check(ctx context.Context, secret string) Verdict {
	sum := sha1.Sum([]byte(secret))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	candidates, err := c.client.Lookup(ctx, prefix)
	if err != nil {
		c.logger.Warn(ctx, "breach index unavailable, verdict indeterminate", "error", err.Error())
		c.count("unavailable")
		return Verdict{Exposed: false, Checked: false}
	}

	for _, candidate := range candidates {
		if strings.EqualFold(candidate, suffix) {
			c.count("exposed")
			return Verdict{Exposed: true, Checked: true}
		}
	}
	c.count("clean")
	return Verdict{Exposed: false, Checked: true}
}

func (c *Checker) count(outcome string) {
	if c.metrics != nil {
		c.metrics.BreachLookupsTotal.WithLabelValues(outcome).Inc()
	}
}
