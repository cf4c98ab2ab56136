package origin

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"

	"dpwharvest/internal/platform/logger"
)

const (
	defaultTimeout = 45 * time.Second
	maxBodyBytes   = 32 << 20
)

// Factory builds single-use HTTP clients whose ClientHello mimics a chosen
// browser profile, optionally tunneled through an HTTP CONNECT proxy.
// Clients are cheap; one is built per attempt and discarded after it
type Factory struct {
	timeout time.Duration
	log     logger.Logger

	mu  sync.Mutex
	rnd *rand.Rand

	// dial is a seam for tests; defaults to a plain net.Dialer
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// FactoryOption tunes a Factory
type FactoryOption func(*Factory)

// WithTimeout overrides the per-attempt timeout
func WithTimeout(d time.Duration) FactoryOption {
	return func(f *Factory) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithSeed makes header rotation deterministic, for tests
func WithSeed(seed int64) FactoryOption {
	return func(f *Factory) { f.rnd = rand.New(rand.NewSource(seed)) }
}

// NewFactory constructs a Factory with sane defaults
func NewFactory(opts ...FactoryOption) *Factory {
	d := &net.Dialer{Timeout: 15 * time.Second}
	f := &Factory{
		timeout: defaultTimeout,
		log:     *logger.Named("origin"),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		dial:    d.DialContext,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Get issues one GET through the named profile, optionally via proxyURL
// (empty means direct). It returns the HTTP status and the decoded body, or
// a transport-level error for the classifier to bucket
func (f *Factory) Get(ctx context.Context, profileLabel, proxyURL, rawURL string) (int, []byte, error) {
	p, ok := profiles[profileLabel]
	if !ok {
		return 0, nil, fmt.Errorf("tls profile %q not supported by this runtime", profileLabel)
	}

	target, err := url.Parse(rawURL)
	if err != nil {
		return 0, nil, fmt.Errorf("parse target: %w", err)
	}
	if target.Scheme != "https" {
		return 0, nil, fmt.Errorf("unsupported scheme %q", target.Scheme)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	host := target.Hostname()
	port := target.Port()
	if port == "" {
		port = "443"
	}
	addr := net.JoinHostPort(host, port)

	conn, err := f.dialMaybeProxy(ctx, proxyURL, addr)
	if err != nil {
		return 0, nil, err
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	tlsConn := utls.UClient(conn, &utls.Config{
		ServerName: host,
		NextProtos: []string{"h2", "http/1.1"},
	}, p.hello)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return 0, nil, fmt.Errorf("tls handshake: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, err
	}
	f.mu.Lock()
	req.Header = identityHeaders(profileLabel, f.rnd)
	f.mu.Unlock()
	req.Host = host

	proto := tlsConn.ConnectionState().NegotiatedProtocol
	var resp *http.Response
	if proto == "h2" {
		resp, err = f.roundTripH2(tlsConn, req)
	} else {
		resp, err = f.roundTripH1(tlsConn, req)
	}
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	f.log.Debug().
		Str("profile", profileLabel).
		Str("proto", proto).
		Bool("proxied", proxyURL != "").
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("origin response")
	return resp.StatusCode, body, nil
}

// dialMaybeProxy opens the raw TCP path to addr, through an HTTP CONNECT
// tunnel when proxyURL is set
func (f *Factory) dialMaybeProxy(ctx context.Context, proxyURL, addr string) (net.Conn, error) {
	if proxyURL == "" {
		return f.dial(ctx, "tcp", addr)
	}

	pu, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("proxy connect: bad proxy url: %w", err)
	}
	phost := pu.Host
	if pu.Port() == "" {
		phost = net.JoinHostPort(pu.Hostname(), "80")
	}

	conn, err := f.dial(ctx, "tcp", phost)
	if err != nil {
		return nil, fmt.Errorf("proxy connect: %w", err)
	}

	connect := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: http.Header{},
	}
	if u := pu.User; u != nil {
		connect.Header.Set("Proxy-Authorization", basicAuth(u))
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	if err := connect.Write(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("proxy connect: %w", err)
	}
	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, connect)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("proxy connect: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_ = conn.Close()
		return nil, fmt.Errorf("proxy connect: tunnel refused with status %d", resp.StatusCode)
	}
	return conn, nil
}

// roundTripH2 drives a single request over a freshly negotiated h2 conn
func (f *Factory) roundTripH2(tlsConn net.Conn, req *http.Request) (*http.Response, error) {
	t := &http2.Transport{}
	cc, err := t.NewClientConn(tlsConn)
	if err != nil {
		return nil, err
	}
	return cc.RoundTrip(req)
}

// roundTripH1 writes the request over the conn and reads one response
func (f *Factory) roundTripH1(tlsConn net.Conn, req *http.Request) (*http.Response, error) {
	if err := req.Write(tlsConn); err != nil {
		return nil, err
	}
	return http.ReadResponse(bufio.NewReader(tlsConn), req)
}

// decodeBody reads and decompresses the response body, bounded by maxBodyBytes
func decodeBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = io.LimitReader(resp.Body, maxBodyBytes)
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case "deflate":
		fl := flate.NewReader(r)
		defer fl.Close()
		r = fl
	case "br":
		r = brotli.NewReader(r)
	}
	return io.ReadAll(r)
}

func basicAuth(u *url.Userinfo) string {
	pass, _ := u.Password()
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(u.Username()+":"+pass))
}
