// Package moov implements the Moov Money OTP direct-debit adapter. The
// provider speaks JSON over a single endpoint; the operation is selected by a
// command-id request header.
package moov

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/etimbre/mobilemoney/pay"
	"github.com/etimbre/mobilemoney/transport"
)

// Provider command ids, one per operation.
const (
	cmdSendOTP   = "process-create-mror-otp"
	cmdResendOTP = "process-mror-resend-otp"
	cmdCommit    = "process-commit-otppay"
)

const merchantOTPModule = "MERCHOTPPAY"

// Sentinel status codes used when no provider verdict exists: StatusMalformed
// when the response cannot be decoded, StatusTransport when the call never
// produced a response.
const (
	StatusMalformed = "MM-500"
	StatusTransport = "MM-503"
)

const statusOK = "0"

// Receipt lines the provider prints on the payer's confirmation SMS.
const (
	receiptLine1 = "Vous avez payé pour 1"
	receiptLine2 = "Vous avez payé pour 2"
)

// Client is the Moov Money adapter. Stateless apart from immutable
// construction-time configuration; safe for concurrent use.
type Client struct {
	url       string
	cred      pay.Credential
	call      transport.CallFunc
	timeout   time.Duration
	verifyTLS bool
	log       zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTLSVerification toggles certificate verification; the sandbox endpoint
// runs with a broken chain.
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

// New builds a Moov adapter targeting endpoint with cred applied as HTTP
// basic auth.
func New(endpoint string, cred pay.Credential, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, &pay.ConfigError{Field: "endpoint", Reason: "must be a valid URL"}
	}
	if cred.IsZero() {
		return nil, &pay.ConfigError{Field: "credential", Reason: "must not be empty"}
	}

	c := &Client{
		url:       endpoint,
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

type extendedData struct {
	Module  string `json:"module"`
	OTP     string `json:"otp,omitempty"`
	Ext1    string `json:"ext1,omitempty"`
	Ext2    string `json:"ext2,omitempty"`
	TransID string `json:"trans-id,omitempty"`
}

type otpIssueBody struct {
	RequestID   string       `json:"request-id"`
	Destination string       `json:"destination"`
	Amount      int64        `json:"amount"`
	Remarks     string       `json:"remarks"`
	Extended    extendedData `json:"extended-data"`
}

// The commit endpoint wants the amount as a string; the issue endpoint wants
// a number.
type commitBody struct {
	RequestID   string       `json:"request-id"`
	Destination string       `json:"destination"`
	Amount      string       `json:"amount"`
	Remarks     string       `json:"remarks"`
	Extended    extendedData `json:"extended-data"`
}

type wireResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	TransID string `json:"trans_id"`
}

// SendOTP asks the provider to push an OTP to the payer's phone.
func (c *Client) SendOTP(ctx context.Context, phone string, amount int64, reference string) (pay.Ack, error) {
	return c.issueOTP(ctx, cmdSendOTP, phone, amount, reference)
}

// ResendOTP re-pushes the OTP. Identical to SendOTP apart from the provider
// command invoked.
func (c *Client) ResendOTP(ctx context.Context, phone string, amount int64, reference string) (pay.Ack, error) {
	return c.issueOTP(ctx, cmdResendOTP, phone, amount, reference)
}

func (c *Client) issueOTP(ctx context.Context, command, phone string, amount int64, reference string) (pay.Ack, error) {
	if err := validateIssue(phone, amount, reference); err != nil {
		return pay.Ack{}, err
	}

	body, err := json.Marshal(otpIssueBody{
		RequestID:   reference,
		Destination: pay.NormalizeMSISDN(phone),
		Amount:      amount,
		Remarks:     "Merchant Payment with OTP",
		Extended:    extendedData{Module: merchantOTPModule},
	})
	if err != nil {
		return pay.Ack{}, err
	}

	out := c.post(ctx, command, body)
	if !out.OK() {
		return pay.Ack{
			Delivered:  false,
			StatusCode: StatusTransport,
			Message:    out.Failure.Message(),
			RequestID:  reference,
		}, nil
	}

	resp, ok := decode(out.Body)
	if !ok {
		return pay.Ack{
			Delivered:  false,
			StatusCode: StatusMalformed,
			Message:    "malformed/incomplete provider response",
			RequestID:  reference,
			Raw:        out.Body,
		}, nil
	}

	return pay.Ack{
		Delivered:  resp.Status == statusOK,
		StatusCode: resp.Status,
		Message:    resp.Message,
		RequestID:  reference,
		Raw:        out.Body,
	}, nil
}

// ValidatePayment commits the debit using the OTP the payer received.
// Transport and protocol faults come back as a Failed result; only parameter
// violations return an error.
func (c *Client) ValidatePayment(ctx context.Context, req pay.OTPRequest) (pay.Result, error) {
	if err := req.Validate(); err != nil {
		return pay.Result{}, err
	}
	if req.OTPTransactionID == "" {
		return pay.Result{}, &pay.ConfigError{Field: "otp transaction id", Reason: "must not be empty"}
	}

	body, err := json.Marshal(commitBody{
		RequestID:   req.Reference,
		Destination: pay.NormalizeMSISDN(req.CustomerPhone),
		Amount:      strconv.FormatInt(req.Amount, 10),
		Remarks:     req.Narrative,
		Extended: extendedData{
			Module:  merchantOTPModule,
			OTP:     req.OTP,
			Ext1:    receiptLine1,
			Ext2:    receiptLine2,
			TransID: req.OTPTransactionID,
		},
	})
	if err != nil {
		return pay.Result{}, err
	}

	out := c.post(ctx, cmdCommit, body)
	if !out.OK() {
		return pay.Result{
			Outcome:       pay.Failed,
			StatusCode:    StatusTransport,
			Message:       out.Failure.Message(),
			TransactionID: req.OTPTransactionID,
		}, nil
	}

	resp, ok := decode(out.Body)
	if !ok {
		return pay.Result{
			Outcome:       pay.Failed,
			StatusCode:    StatusMalformed,
			Message:       "malformed/incomplete provider response",
			TransactionID: req.OTPTransactionID,
			Raw:           out.Body,
		}, nil
	}

	outcome := pay.Failed
	if resp.Status == statusOK {
		outcome = pay.Succeeded
	}
	return pay.Result{
		Outcome:       outcome,
		StatusCode:    resp.Status,
		Message:       resp.Message,
		TransactionID: resp.TransID,
		Raw:           out.Body,
	}, nil
}

func (c *Client) post(ctx context.Context, command string, body []byte) transport.Outcome {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Command-Id", command)

	return c.call(ctx, transport.Request{
		Method:        http.MethodPost,
		URL:           c.url,
		Header:        header,
		Body:          body,
		BasicUser:     c.cred.Key(),
		BasicPass:     c.cred.Secret(),
		SkipTLSVerify: !c.verifyTLS,
		Timeout:       c.timeout,
	})
}

func decode(body []byte) (wireResponse, bool) {
	var resp wireResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return wireResponse{}, false
	}
	if resp.Status == "" {
		return wireResponse{}, false
	}
	return resp, true
}

func validateIssue(phone string, amount int64, reference string) error {
	if phone == "" {
		return &pay.ConfigError{Field: "customer phone", Reason: "must not be empty"}
	}
	if amount <= 0 {
		return &pay.ConfigError{Field: "amount", Reason: "must be a positive integer"}
	}
	if reference == "" {
		return &pay.ConfigError{Field: "reference", Reason: "must not be empty"}
	}
	return nil
}
