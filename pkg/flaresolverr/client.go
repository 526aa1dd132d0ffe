// Package flaresolverr clears Cloudflare challenges in front of the origin
// site through a FlareSolverr instance. The solved cookies and the browser
// user agent they are bound to are handed back to the session.
package flaresolverr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"m3u8-resolver/pkg/interfaces"
	"m3u8-resolver/pkg/logging"
)

var _ interfaces.ChallengeSolver = (*Client)(nil)

// maxResponseBytes bounds the solver reply; it embeds the full page HTML.
const maxResponseBytes = 16 << 20

type request struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url"`
	MaxTimeout int    `json:"maxTimeout"`
}

// Client talks to the FlareSolverr v1 API.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	log        *logging.Logger
}

// NewClient creates a client for the instance at baseURL.
func NewClient(baseURL string, timeout time.Duration, log *logging.Logger) *Client {
	return &Client{
		endpoint: baseURL + "/v1",
		timeout:  timeout,
		httpClient: &http.Client{
			// the solver enforces timeout itself; leave room for its reply
			Timeout: timeout + 10*time.Second,
		},
		log: log.WithComponent("flaresolverr"),
	}
}

// Solve loads rawURL in the solver's browser and returns the cookies it
// collected together with the user agent they were issued to.
func (c *Client) Solve(ctx context.Context, rawURL string) ([]*http.Cookie, string, error) {
	body, err := json.Marshal(request{
		Cmd:        "request.get",
		URL:        rawURL,
		MaxTimeout: int(c.timeout.Milliseconds()),
	})
	if err != nil {
		return nil, "", fmt.Errorf("encoding solver request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("building solver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("solver request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, "", fmt.Errorf("reading solver response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("solver returned status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(data) {
		return nil, "", fmt.Errorf("solver returned invalid JSON")
	}

	reply := gjson.ParseBytes(data)
	if status := reply.Get("status").String(); status != "ok" {
		return nil, "", fmt.Errorf("solver status %q: %s", status, reply.Get("message").String())
	}

	solution := reply.Get("solution")
	cookies := parseCookies(solution.Get("cookies"))
	userAgent := solution.Get("userAgent").String()

	c.log.WithDuration(time.Since(start)).Debug("challenge solved",
		"url", rawURL,
		"status", solution.Get("status").Int(),
		"cookies", len(cookies),
	)
	return cookies, userAgent, nil
}

func parseCookies(list gjson.Result) []*http.Cookie {
	var out []*http.Cookie
	list.ForEach(func(_, v gjson.Result) bool {
		name := v.Get("name").String()
		if name == "" {
			return true
		}
		ck := &http.Cookie{
			Name:     name,
			Value:    v.Get("value").String(),
			Domain:   v.Get("domain").String(),
			Path:     v.Get("path").String(),
			Secure:   v.Get("secure").Bool(),
			HttpOnly: v.Get("httpOnly").Bool(),
		}
		if exp := v.Get("expires").Int(); exp > 0 {
			ck.Expires = time.Unix(exp, 0)
		}
		out = append(out, ck)
		return true
	})
	return out
}
