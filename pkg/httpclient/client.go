// Package httpclient provides the outbound transport with proxy routing and
// browser-like TLS for hosts that fingerprint clients.
package httpclient

import (
	"bufio"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"m3u8-resolver/pkg/config"
	"m3u8-resolver/pkg/logging"

	utls "github.com/refraction-networking/utls"
	"github.com/samber/lo"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

// Client is an http.RoundTripper that picks a transport per target URL.
// Sessions wrap it in an http.Client carrying their own cookie jar, so one
// Client (and its connection pools) is shared by every resolution.
type Client struct {
	defaultTransport http.RoundTripper
	utlsTransport    http.RoundTripper // browser-like TLS fingerprint
	proxyTransports  map[string]http.RoundTripper
	routes           []config.TransportRoute
	globalProxies    []string
	next             atomic.Uint64
	utlsDomains      []string
	mu               sync.RWMutex
	log              *logging.Logger
}

func newDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 60 * time.Second,
	}
}

// dialTCP4 pins plain tcp dials to IPv4; several player CDNs publish
// AAAA records they do not serve.
func dialTCP4(ctx context.Context, network, addr string) (net.Conn, error) {
	if network == "tcp" {
		network = "tcp4"
	}
	return newDialer().DialContext(ctx, network, addr)
}

func newPooledTransport() *http.Transport {
	return &http.Transport{
		DialContext:           dialTCP4,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
}

// New creates a new routing transport with the given configuration.
func New(cfg *config.Config, log *logging.Logger) *Client {
	return &Client{
		defaultTransport: newPooledTransport(),
		utlsTransport:    newUTLSRoundTripper(),
		proxyTransports:  make(map[string]http.RoundTripper),
		routes:           cfg.TransportRoutes,
		globalProxies:    cfg.GlobalProxies,
		utlsDomains:      cfg.UTLSDomains,
		log:              log.WithComponent("httpclient"),
	}
}

// NewHTTPClient returns an http.Client routed through c. jar may be nil.
func (c *Client) NewHTTPClient(jar http.CookieJar, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: c,
		Jar:       jar,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// RoundTrip implements http.RoundTripper.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	return c.transportFor(req.URL).RoundTrip(req)
}

// utlsRoundTripper dials with a Chrome ClientHello and speaks h2 or
// HTTP/1.1, whichever ALPN settles on. Connections are not reused.
type utlsRoundTripper struct {
	dialer      *net.Dialer
	h2Transport *http2.Transport
}

func newUTLSRoundTripper() *utlsRoundTripper {
	return &utlsRoundTripper{
		dialer: newDialer(),
		h2Transport: &http2.Transport{
			DisableCompression: false,
			AllowHTTP:          false,
		},
	}
}

func (t *utlsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return http.DefaultTransport.RoundTrip(req)
	}

	addr := req.URL.Host
	if !strings.Contains(addr, ":") {
		addr = addr + ":443"
	}

	conn, err := t.dialer.DialContext(req.Context(), "tcp4", addr)
	if err != nil {
		return nil, err
	}

	utlsConn := utls.UClient(conn, &utls.Config{ServerName: req.URL.Hostname()}, utls.HelloChrome_120)
	if err := utlsConn.HandshakeContext(req.Context()); err != nil {
		conn.Close()
		return nil, err
	}

	if utlsConn.ConnectionState().NegotiatedProtocol == "h2" {
		h2Conn, err := t.h2Transport.NewClientConn(utlsConn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return h2Conn.RoundTrip(req)
	}

	return t.doHTTP1Request(utlsConn, req)
}

func (t *utlsRoundTripper) doHTTP1Request(conn net.Conn, req *http.Request) (*http.Response, error) {
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, err
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, err
	}

	resp.Body = &connCloser{resp.Body, conn}
	return resp, nil
}

type connCloser struct {
	io.ReadCloser
	conn net.Conn
}

func (c *connCloser) Close() error {
	c.ReadCloser.Close()
	return c.conn.Close()
}

// fingerprinted reports whether host is, or is a subdomain of, one of the
// configured utls domains.
func (c *Client) fingerprinted(host string) bool {
	host = strings.ToLower(host)
	return lo.SomeBy(c.utlsDomains, func(d string) bool {
		d = strings.ToLower(strings.TrimPrefix(d, "."))
		return host == d || strings.HasSuffix(host, "."+d)
	})
}

// transportFor applies the routing rules to u: utls domains first, then the
// first matching TRANSPORT_ROUTES entry, then the global proxies in turn.
func (c *Client) transportFor(u *url.URL) http.RoundTripper {
	if c.fingerprinted(u.Hostname()) {
		c.log.Debug("route: utls", "host", u.Host)
		return c.utlsTransport
	}

	target := u.String()
	if route, ok := lo.Find(c.routes, func(r config.TransportRoute) bool {
		return strings.Contains(target, r.URLPattern)
	}); ok {
		c.log.Debug("route: matched", "host", u.Host, "pattern", route.URLPattern, "direct", route.Direct)
		switch {
		case route.Direct && !route.DisableSSL:
			return c.defaultTransport
		case route.Direct, route.Proxy == "":
			if route.DisableSSL {
				return c.proxyTransport("", true)
			}
		default:
			return c.proxyTransport(route.Proxy, route.DisableSSL)
		}
	}

	if n := len(c.globalProxies); n > 0 {
		p := c.globalProxies[(c.next.Add(1)-1)%uint64(n)]
		c.log.Debug("route: global proxy", "host", u.Host, "proxy", p)
		return c.proxyTransport(p, false)
	}
	return c.defaultTransport
}

// proxyTransport returns the cached transport for proxyURL, building it on
// first use. An empty proxyURL with disableSSL yields a direct insecure
// transport.
func (c *Client) proxyTransport(proxyURL string, disableSSL bool) http.RoundTripper {
	key := proxyURL
	if disableSSL {
		key += "|insecure"
	}

	c.mu.RLock()
	t, ok := c.proxyTransports[key]
	c.mu.RUnlock()
	if ok {
		return t
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.proxyTransports[key]; ok {
		return t
	}
	t = c.buildProxyTransport(proxyURL, disableSSL)
	c.proxyTransports[key] = t
	return t
}

func (c *Client) buildProxyTransport(proxyURL string, disableSSL bool) http.RoundTripper {
	transport := newPooledTransport()
	if disableSSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if proxyURL == "" {
		return transport
	}

	pu, err := url.Parse(proxyURL)
	if err != nil {
		c.log.Error("bad proxy URL, going direct", "proxy", proxyURL, "error", err)
		return c.defaultTransport
	}

	switch pu.Scheme {
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(pu, proxy.Direct)
		if err != nil {
			c.log.Error("socks dialer failed, going direct", "proxy", pu.Host, "error", err)
			return c.defaultTransport
		}
		cd, ok := dialer.(proxy.ContextDialer)
		if !ok {
			c.log.Error("socks dialer lacks DialContext, going direct", "proxy", pu.Host)
			return c.defaultTransport
		}
		transport.DialContext = cd.DialContext
	case "http", "https":
		transport.Proxy = http.ProxyURL(pu)
	default:
		c.log.Warn("unsupported proxy scheme, going direct", "scheme", pu.Scheme)
		return c.defaultTransport
	}
	return transport
}
