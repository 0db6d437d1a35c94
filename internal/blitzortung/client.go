// Package blitzortung is an HTTP client for the protected strike feed of the
// Blitzortung lightning-detection network. Access requires the credentials of
// a participating station operator.
package blitzortung

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"blitzmap-server/internal/mapprofile"
)

const (
	defaultBaseURL = "https://data.blitzortung.org"
	strikesPath    = "/Data/Protected/last_strikes.php"
	userAgent      = "blitzmap-server"

	requestTimeout = 10 * time.Second

	// The feed is polled every minute; asking for the last 5 minutes
	// tolerates missed cycles and the dedup on insert absorbs the overlap.
	fetchWindow = 5 * time.Minute
)

// ErrAuthentication indicates the feed rejected the configured credentials.
var ErrAuthentication = errors.New("blitzortung: authentication failed")

// Strike is one detected lightning discharge from the feed.
type Strike struct {
	TimeNs int64   `json:"time"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// Time converts the feed's nanosecond timestamp to a time.Time.
func (s Strike) Time() time.Time {
	return time.Unix(0, s.TimeNs)
}

type Client struct {
	username string
	password string
	profile  mapprofile.Profile
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

func New(username, password string, profile mapprofile.Profile, logger *slog.Logger) *Client {
	return &Client{
		username: username,
		password: password,
		profile:  profile,
		baseURL:  defaultBaseURL,
		http:     &http.Client{Timeout: requestTimeout},
		logger:   logger,
		now:      time.Now,
	}
}

// FetchStrikes requests all strikes inside the profile bbox from the last
// five minutes. The body is JSON lines, one strike per line; blank and
// malformed lines are skipped. Strikes the feed returns outside the bbox are
// filtered out.
func (c *Client) FetchStrikes(ctx context.Context) ([]Strike, error) {
	since := c.now().Add(-fetchWindow)

	q := url.Values{}
	q.Set("time", strconv.FormatInt(since.UnixNano(), 10))
	q.Set("west", formatCoord(c.profile.West))
	q.Set("east", formatCoord(c.profile.East))
	q.Set("north", formatCoord(c.profile.North))
	q.Set("south", formatCoord(c.profile.South))
	q.Set("sig", "0")

	resp, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrAuthentication
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("blitzortung: fetch strikes: status %d", resp.StatusCode)
	}

	var strikes []Strike
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var s Strike
		if err := json.Unmarshal(line, &s); err != nil {
			c.logger.Warn("skipping malformed strike line", "error", err)
			continue
		}
		if !c.profile.Contains(s.Lat, s.Lon) {
			continue
		}
		strikes = append(strikes, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("blitzortung: read body: %w", err)
	}
	return strikes, nil
}

// TestConnection asks the feed for a single strike to validate credentials.
func (c *Client) TestConnection(ctx context.Context) error {
	q := url.Values{}
	q.Set("number", "1")
	q.Set("sig", "0")

	resp, err := c.get(ctx, q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAuthentication
	default:
		return fmt.Errorf("blitzortung: test connection: status %d", resp.StatusCode)
	}
}

func (c *Client) get(ctx context.Context, q url.Values) (*http.Response, error) {
	u := c.baseURL + strikesPath + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("blitzortung: build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blitzortung: request: %w", err)
	}
	return resp, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
