// Package transport is the single place provider HTTP calls go through. It
// performs one authenticated request and reports either the raw response or a
// classified failure; it never retries and never returns a Go error for
// network faults.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a call when the request does not carry its own.
const DefaultTimeout = 30 * time.Second

// FailureKind classifies a transport-level fault.
type FailureKind int

const (
	KindOther FailureKind = iota
	KindTimeout
	KindConnection
	KindTLS
)

// Failure describes why a call never produced a provider response.
type Failure struct {
	Kind   FailureKind
	Detail string
}

// Message returns the short human-readable classification adapters embed in
// canonical results.
func (f *Failure) Message() string {
	switch f.Kind {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection error"
	case KindTLS:
		return "tls verification error"
	default:
		return "transport error"
	}
}

// Request carries everything one provider call needs. BasicUser/BasicPass are
// applied as HTTP basic auth when BasicUser is non-empty.
type Request struct {
	Method    string
	URL       string
	Header    http.Header
	Body      []byte
	BasicUser string
	BasicPass string
	// SkipTLSVerify disables certificate verification; some provider
	// sandboxes run with broken chains.
	SkipTLSVerify bool
	Timeout       time.Duration
}

// Outcome is the variant result of a call: a response (Failure nil) or a
// classified failure (Failure non-nil, response fields zero).
type Outcome struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Failure    *Failure
}

// OK reports whether the provider produced a response at all, regardless of
// its HTTP status.
func (o Outcome) OK() bool { return o.Failure == nil }

// CallFunc is the signature adapters depend on, so tests can substitute the
// network with a function.
type CallFunc func(ctx context.Context, req Request) Outcome

// Shared transports so repeated calls to the same provider reuse
// connections. Correctness does not depend on this.
var (
	verifyingTransport http.RoundTripper = http.DefaultTransport
	insecureTransport  http.RoundTripper = &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
)

// Caller performs provider calls and emits redacted request/response events
// through its logger.
type Caller struct {
	log zerolog.Logger
}

// NewCaller builds a Caller logging through log. Use zerolog.Nop() to
// silence it.
func NewCaller(log zerolog.Logger) *Caller {
	return &Caller{log: log}
}

// Call performs the request. All transport problems are folded into the
// returned Outcome; the method never panics and never returns an error.
func (c *Caller) Call(ctx context.Context, req Request) Outcome {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Outcome{Failure: &Failure{Kind: KindOther, Detail: err.Error()}}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.BasicUser != "" {
		httpReq.SetBasicAuth(req.BasicUser, req.BasicPass)
	}

	c.log.Debug().
		Str("method", req.Method).
		Str("url", req.URL).
		Int("body_bytes", len(req.Body)).
		Bool("tls_verify", !req.SkipTLSVerify).
		Msg("provider request")

	client := &http.Client{Transport: verifyingTransport}
	if req.SkipTLSVerify {
		client.Transport = insecureTransport
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		f := classify(err)
		c.log.Warn().
			Str("url", req.URL).
			Str("kind", f.Message()).
			Str("detail", f.Detail).
			Msg("provider call failed")
		return Outcome{Failure: f}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Failure: classify(err)}
	}

	c.log.Debug().
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Int("body_bytes", len(data)).
		Msg("provider response")

	return Outcome{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}
}

func classify(err error) *Failure {
	detail := err.Error()

	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: KindTimeout, Detail: detail}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Failure{Kind: KindTimeout, Detail: detail}
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) {
		return &Failure{Kind: KindTLS, Detail: detail}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &Failure{Kind: KindConnection, Detail: detail}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Failure{Kind: KindConnection, Detail: detail}
	}

	return &Failure{Kind: KindOther, Detail: detail}
}
