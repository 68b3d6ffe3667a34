// Package orange implements the Orange Money OTP direct-debit adapter. The
// provider takes a fixed-order XML command and answers with a bare XML
// fragment that is not a well-formed document on its own.
package orange

import (
	"context"
	"encoding/xml"
	"net/http"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/etimbre/mobilemoney/pay"
	"github.com/etimbre/mobilemoney/transport"
)

// Provider endpoints per environment.
const (
	DevURL  = "https://testom.orange.bf:9008/payment"
	ProdURL = "https://apiom.orange.bf:9007/payment"
)

// Sentinel status codes: StatusMalformed when the response fragment is
// missing required fields, StatusTransport when the call never produced a
// response.
const (
	StatusMalformed = "OM-500"
	StatusTransport = "OM-503"
)

// Fixed protocol constants the provider requires verbatim.
const (
	commandType = "OMPREQ"
	providerID  = "101"
	payID       = "12"
)

// Client is the Orange Money adapter. The provider has no OTP-issue API; the
// payer obtains the OTP through Orange's own USSD channel, so the adapter
// implements only payment validation.
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

// New builds an Orange adapter for env. The credential must carry the
// merchant MSISDN; it travels inside the XML command alongside the API
// username and password.
func New(env pay.Environment, cred pay.Credential, opts ...Option) (*Client, error) {
	if cred.IsZero() {
		return nil, &pay.ConfigError{Field: "credential", Reason: "must not be empty"}
	}
	if cred.MerchantPhone() == "" {
		return nil, &pay.ConfigError{Field: "merchant phone", Reason: "required for Orange Money"}
	}

	endpoint := ProdURL
	if env == pay.Dev {
		endpoint = DevURL
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

// command is the request document. Field order matters to the provider and
// matches its published element sequence.
type command struct {
	XMLName         xml.Name `xml:"COMMAND"`
	Type            string   `xml:"TYPE"`
	CustomerMSISDN  string   `xml:"customer_msisdn"`
	MerchantMSISDN  string   `xml:"merchant_msisdn"`
	APIUsername     string   `xml:"api_username"`
	APIPassword     string   `xml:"api_password"`
	Amount          int64    `xml:"amount"`
	Provider        string   `xml:"PROVIDER"`
	Provider2       string   `xml:"PROVIDER2"`
	PayID           string   `xml:"PAYID"`
	PayID2          string   `xml:"PAYID2"`
	OTP             string   `xml:"otp"`
	ReferenceNumber string   `xml:"reference_number"`
	ExtTxnID        string   `xml:"ext_txn_id"`
}

// ValidatePayment commits the debit using the OTP the payer obtained from
// Orange's channel. Transport and parse faults come back as a Failed result;
// only parameter violations return an error.
func (c *Client) ValidatePayment(ctx context.Context, req pay.OTPRequest) (pay.Result, error) {
	if err := req.Validate(); err != nil {
		return pay.Result{}, err
	}

	body, err := xml.Marshal(command{
		Type:            commandType,
		CustomerMSISDN:  req.CustomerPhone,
		MerchantMSISDN:  c.cred.MerchantPhone(),
		APIUsername:     c.cred.Key(),
		APIPassword:     c.cred.Secret(),
		Amount:          req.Amount,
		Provider:        providerID,
		Provider2:       providerID,
		PayID:           payID,
		PayID2:          payID,
		OTP:             req.OTP,
		ReferenceNumber: req.Narrative,
		ExtTxnID:        req.Reference,
	})
	if err != nil {
		return pay.Result{}, err
	}

	header := http.Header{}
	header.Set("Content-Type", "application/xml")

	out := c.call(ctx, transport.Request{
		Method:        http.MethodPost,
		URL:           c.url,
		Header:        header,
		Body:          body,
		BasicUser:     c.cred.Key(),
		BasicPass:     c.cred.Secret(),
		SkipTLSVerify: !c.verifyTLS,
		Timeout:       c.timeout,
	})
	if !out.OK() {
		return pay.Result{
			Outcome:    pay.Failed,
			StatusCode: StatusTransport,
			Message:    out.Failure.Message(),
		}, nil
	}

	return parseResult(out.Body), nil
}

type fragment struct {
	Status  *string `xml:"status"`
	Message *string `xml:"message"`
	TransID *string `xml:"transID"`
}

// Matches the three fields wherever they sit in the fragment. The provider's
// format has drifted across versions, so this backs up the structural parse.
var fragmentPattern = regexp.MustCompile(
	`(?s)<status>(.*?)</status>.*?<message>(.*?)</message>.*?<transID>(.*?)</transID>`)

// parseResult normalizes the provider's response fragment. The fragment has
// no single root, so it is wrapped in a synthetic one before decoding; when
// structural parsing fails the regex fallback takes over. A fragment missing
// any of status/message/transID yields the canned malformed-response result.
func parseResult(raw []byte) pay.Result {
	wrapped := make([]byte, 0, len(raw)+len("<result></result>"))
	wrapped = append(wrapped, "<result>"...)
	wrapped = append(wrapped, raw...)
	wrapped = append(wrapped, "</result>"...)

	var f fragment
	if err := xml.Unmarshal(wrapped, &f); err != nil || f.Status == nil || f.Message == nil || f.TransID == nil {
		if m := fragmentPattern.FindSubmatch(raw); m != nil {
			return resultFrom(string(m[1]), string(m[2]), string(m[3]), raw)
		}
		return pay.Result{
			Outcome:    pay.Failed,
			StatusCode: StatusMalformed,
			Message:    "malformed/incomplete provider response",
			Raw:        raw,
		}
	}
	return resultFrom(*f.Status, *f.Message, *f.TransID, raw)
}

func resultFrom(status, message, transID string, raw []byte) pay.Result {
	outcome := pay.Failed
	if status == "200" || status == "00" || status == "0" {
		outcome = pay.Succeeded
	}
	return pay.Result{
		Outcome:       outcome,
		StatusCode:    status,
		Message:       message,
		TransactionID: transID,
		Raw:           raw,
	}
}
