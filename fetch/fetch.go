// Package fetch provides the two outbound HTTP clients the extraction
// pipeline uses: an identified bot client for public chain menu pages, and
// a browser-profile client for delivery-platform pages, which gate on both
// request headers and the TLS fingerprint.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	tls "github.com/refraction-networking/utls"

	"github.com/dealscout/dealscout/models"
)

// BotUserAgent identifies the scraper honestly on public menu pages.
const BotUserAgent = "DealScoutBot/1.0 (+https://dealscout.example; contact: support@dealscout.local)"

// chromeUA matches the Chrome version of the TLS fingerprint below.
const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBodyBytes caps response bodies at 10 MB.
const maxBodyBytes = 10 * 1024 * 1024

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only, computed once and reused for every connection. h2 must be
// stripped because Go's http.Transport cannot speak HTTP/2 over a utls
// connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// Client fetches pages with a fixed header profile.
type Client struct {
	httpClient *http.Client
	userAgent  string
	headers    map[string]string
}

// NewBotClient returns a client that identifies itself as DealScoutBot and
// uses the default Go TLS stack.
func NewBotClient(timeout time.Duration, proxy string) *Client {
	transport := &http.Transport{}
	applyProxy(transport, proxy)
	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		userAgent:  BotUserAgent,
		headers: map[string]string{
			"Accept-Language": "en-US,en;q=0.8",
		},
	}
}

// NewBrowserClient returns a client with a Chrome header set and a Chrome
// TLS ClientHello, for pages that reject non-browser traffic.
func NewBrowserClient(timeout time.Duration, proxy string) *Client {
	transport := &http.Transport{
		DialTLSContext: dialTLSChrome,
	}
	applyProxy(transport, proxy)
	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		userAgent:  chromeUA,
		headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
	}
}

// Get fetches targetURL and returns the body as text. Extra headers are
// applied on top of the client's profile. Any non-2xx status is a fetch
// failure.
func (c *Client) Get(ctx context.Context, targetURL string, extra map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeFetchFailed, "build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeFetchFailed, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", models.NewScrapeError(
			models.ErrCodeFetchFailed,
			fmt.Sprintf("HTTP %d for %s", resp.StatusCode, targetURL),
			nil,
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeFetchFailed, "read body", err)
	}
	return string(body), nil
}

func applyProxy(transport *http.Transport, proxy string) {
	if proxy == "" {
		return
	}
	proxyURL, err := url.Parse(proxy)
	if err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
		transport.Proxy = http.ProxyURL(proxyURL)
	}
}

// dialTLSChrome establishes a TLS connection presenting the Chrome
// ClientHello defined by chromeH1Spec.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(rawConn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		rawConn.Close()
		return nil, err
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
