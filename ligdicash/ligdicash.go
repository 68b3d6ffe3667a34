// Package ligdicash implements the Ligdicash redirect-invoice adapter. The
// aggregator hosts the payment page itself: the adapter creates an invoice
// session, hands the redirect URL back to the caller, and later verifies
// completion through the session token.
package ligdicash

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/rs/zerolog"

	"github.com/etimbre/mobilemoney/pay"
	"github.com/etimbre/mobilemoney/transport"
)

// Base URLs per environment. Ligdicash currently serves both environments
// from one host; the seam stays so a future split is a configuration change.
const (
	DevBaseURL  = "https://app.ligdicash.com/pay/v01"
	ProdBaseURL = "https://app.ligdicash.com/pay/v01"
)

const (
	createPath = "/redirect/checkout-invoice/create"
	verifyPath = "/redirect/checkout-invoice/confirm/"
)

// Sentinel status codes: StatusMalformed when the response cannot be
// decoded, StatusTransport when the call never produced a response.
const (
	StatusMalformed = "LDG-500"
	StatusTransport = "LDG-503"
)

const statusOK = "00"

// Client is the Ligdicash adapter. Stateless apart from immutable
// construction-time configuration; safe for concurrent use.
type Client struct {
	baseURL   string
	cred      pay.Credential
	call      transport.CallFunc
	timeout   time.Duration
	verifyTLS bool
	log       zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the environment base URL, for tests and future
// endpoint splits.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTLSVerification toggles certificate verification.
func WithTLSVerification(verify bool) Option {
	return func(c *Client) { c.verifyTLS = verify }
}

// WithLogger supplies the structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithCallFunc substitutes the transport, for tests.
func WithCallFunc(call transport.CallFunc) Option {
	return func(c *Client) {
		if call != nil {
			c.call = call
		}
	}
}

// New builds a Ligdicash adapter for env. The credential key is sent as the
// Apikey header, the secret as a bearer token.
func New(env pay.Environment, cred pay.Credential, opts ...Option) (*Client, error) {
	if cred.IsZero() {
		return nil, &pay.ConfigError{Field: "credential", Reason: "must not be empty"}
	}

	base := ProdBaseURL
	if env == pay.Dev {
		base = DevBaseURL
	}

	c := &Client{
		baseURL:   base,
		cred:      cred,
		timeout:   transport.DefaultTimeout,
		verifyTLS: true,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.call == nil {
		c.call = transport.NewCaller(c.log).Call
	}
	return c, nil
}

// The create request travels under a single envelope key.
type envelope struct {
	Commande Command `json:"commande"`
}

type createResponse struct {
	ResponseCode string         `json:"response_code"`
	Token        string         `json:"token"`
	ResponseText string         `json:"response_text"`
	Description  string         `json:"description"`
	CustomData   pay.CustomData `json:"custom_data"`
}

type verifyResponse struct {
	Status string `json:"status"`
}

// CreateInvoice opens a hosted-payment session for cmd. On success the
// session's RedirectURL is returned verbatim for the caller to present;
// this adapter never opens it itself. Transport and protocol faults come
// back as a Failed result; only command violations return an error.
func (c *Client) CreateInvoice(ctx context.Context, cmd Command) (pay.InvoiceResult, error) {
	if err := cmd.Validate(); err != nil {
		return pay.InvoiceResult{}, err
	}
	if cmd.CustomData.TransactionID == "" {
		return pay.InvoiceResult{}, &pay.ConfigError{Field: "transaction id", Reason: "must not be empty"}
	}

	body, err := json.Marshal(envelope{Commande: cmd})
	if err != nil {
		return pay.InvoiceResult{}, err
	}

	out := c.call(ctx, transport.Request{
		Method:        http.MethodPost,
		URL:           c.baseURL + createPath,
		Header:        c.headers(),
		Body:          body,
		SkipTLSVerify: !c.verifyTLS,
		Timeout:       c.timeout,
	})
	if !out.OK() {
		return pay.InvoiceResult{Result: pay.Result{
			Outcome:       pay.Failed,
			StatusCode:    StatusTransport,
			Message:       out.Failure.Message(),
			TransactionID: cmd.CustomData.TransactionID,
		}}, nil
	}

	var resp createResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil || resp.ResponseCode == "" {
		return pay.InvoiceResult{Result: pay.Result{
			Outcome:       pay.Failed,
			StatusCode:    StatusMalformed,
			Message:       "malformed/incomplete provider response",
			TransactionID: cmd.CustomData.TransactionID,
			Raw:           out.Body,
		}}, nil
	}

	if resp.ResponseCode != statusOK || resp.Token == "" {
		return pay.InvoiceResult{Result: pay.Result{
			Outcome:       pay.Failed,
			StatusCode:    resp.ResponseCode,
			Message:       resp.Description,
			TransactionID: cmd.CustomData.TransactionID,
			Raw:           out.Body,
		}}, nil
	}

	return pay.InvoiceResult{
		Result: pay.Result{
			Outcome:       pay.Succeeded,
			StatusCode:    resp.ResponseCode,
			Message:       resp.Description,
			TransactionID: resp.CustomData.TransactionID,
			Raw:           out.Body,
		},
		Session: pay.InvoiceSession{
			RedirectURL: resp.ResponseText,
			Token:       resp.Token,
			CustomData:  resp.CustomData,
		},
	}, nil
}

type verifyQuery struct {
	InvoiceToken string `url:"invoiceToken"`
}

// VerifyToken polls the completion state of an invoice session. The mapping
// is deliberately forgiving: anything other than an explicit completed or
// nocompleted answer reads as Unknown, so a network hiccup mid-poll is never
// mistaken for a definitive negative.
func (c *Client) VerifyToken(ctx context.Context, token string) (pay.TriState, pay.Result, error) {
	if strings.TrimSpace(token) == "" {
		return pay.Unknown, pay.Result{}, &pay.ConfigError{Field: "token", Reason: "must not be empty"}
	}

	q, err := query.Values(verifyQuery{InvoiceToken: token})
	if err != nil {
		return pay.Unknown, pay.Result{}, err
	}

	out := c.call(ctx, transport.Request{
		Method:        http.MethodGet,
		URL:           c.baseURL + verifyPath + "?" + q.Encode(),
		Header:        c.headers(),
		SkipTLSVerify: !c.verifyTLS,
		Timeout:       c.timeout,
	})
	if !out.OK() {
		return pay.Unknown, pay.Result{
			Outcome:    pay.Unknown,
			StatusCode: StatusTransport,
			Message:    out.Failure.Message(),
		}, nil
	}

	var resp verifyResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return pay.Unknown, pay.Result{
			Outcome:    pay.Unknown,
			StatusCode: StatusMalformed,
			Message:    "malformed/incomplete provider response",
			Raw:        out.Body,
		}, nil
	}

	state := pay.Unknown
	switch resp.Status {
	case "completed":
		state = pay.Succeeded
	case "nocompleted":
		state = pay.Failed
	}

	return state, pay.Result{
		Outcome:    state,
		StatusCode: resp.Status,
		Message:    resp.Status,
		Raw:        out.Body,
	}, nil
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("Apikey", c.cred.Key())
	h.Set("Authorization", "Bearer "+c.cred.Secret())
	return h
}
