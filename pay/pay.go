// Package pay defines the provider-agnostic payment contract shared by every
// adapter: credentials, request shapes, and the canonical result every provider
// response is normalized into.
package pay

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Environment selects the provider endpoint set an adapter targets.
type Environment string

const (
	Dev  Environment = "dev"
	Prod Environment = "prod"
)

// CountryCallingCode is the prefix every customer MSISDN is normalized to
// before it reaches a provider (Burkina Faso).
const CountryCallingCode = "226"

// ErrUnsupportedOperation is returned when an operation is dispatched to a
// provider that does not implement it, e.g. asking the XML OTP provider to
// issue an OTP itself.
var ErrUnsupportedOperation = errors.New("operation not supported by this provider")

// ConfigError reports an invalid caller-supplied parameter. It is always
// surfaced before any network call happens.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsConfigError reports whether err is a pre-flight parameter violation.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Credential holds one provider's API credential material. It is immutable
// once constructed; its String form is redacted so it can never leak secrets
// through logging.
type Credential struct {
	key           string
	secret        string
	merchantPhone string
}

// NewCredential builds a credential from an API key (or username) and secret
// (or password).
func NewCredential(key, secret string) (Credential, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Credential{}, &ConfigError{Field: "credential key", Reason: "must not be empty"}
	}
	if secret == "" {
		return Credential{}, &ConfigError{Field: "credential secret", Reason: "must not be empty"}
	}
	return Credential{key: key, secret: secret}, nil
}

// NewMerchantCredential builds a credential that additionally carries the
// merchant's own MSISDN, required by providers that identify the merchant by
// phone number.
func NewMerchantCredential(key, secret, merchantPhone string) (Credential, error) {
	cred, err := NewCredential(key, secret)
	if err != nil {
		return Credential{}, err
	}
	merchantPhone = strings.TrimSpace(merchantPhone)
	if merchantPhone == "" {
		return Credential{}, &ConfigError{Field: "merchant phone", Reason: "must not be empty"}
	}
	cred.merchantPhone = merchantPhone
	return cred, nil
}

// Key returns the API key or username.
func (c Credential) Key() string { return c.key }

// Secret returns the API secret, password, or bearer token.
func (c Credential) Secret() string { return c.secret }

// MerchantPhone returns the merchant MSISDN, empty when not set.
func (c Credential) MerchantPhone() string { return c.merchantPhone }

// IsZero reports whether the credential was never populated.
func (c Credential) IsZero() bool { return c.key == "" && c.secret == "" }

// String implements fmt.Stringer with all secret material redacted.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{key:%s secret:[redacted]}", redact(c.key))
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// NormalizeMSISDN prefixes the country calling code onto a local subscriber
// number. It is idempotent: an already prefixed number passes through
// unchanged.
func NormalizeMSISDN(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, CountryCallingCode) {
		return phone
	}
	return CountryCallingCode + phone
}

// OTPRequest describes one OTP-authorized direct-debit commit.
type OTPRequest struct {
	// CustomerPhone is the payer's number, local or already prefixed.
	CustomerPhone string
	// Amount is the debit amount in XOF (no subunit).
	Amount int64
	// OTP is the one-time password the payer received.
	OTP string
	// Narrative is the human-readable payment label shown to the payer.
	Narrative string
	// OTPTransactionID is the provider transaction id issued with the OTP.
	OTPTransactionID string
	// Reference is the caller's own reference; generated when empty.
	Reference string
}

// Validate reports the first parameter violation, or nil. Adapters call it
// before building any wire payload.
func (r OTPRequest) Validate() error {
	if strings.TrimSpace(r.CustomerPhone) == "" {
		return &ConfigError{Field: "customer phone", Reason: "must not be empty"}
	}
	if r.Amount <= 0 {
		return &ConfigError{Field: "amount", Reason: "must be a positive integer"}
	}
	if strings.TrimSpace(r.OTP) == "" {
		return &ConfigError{Field: "otp", Reason: "must not be empty"}
	}
	if strings.TrimSpace(r.Narrative) == "" {
		return &ConfigError{Field: "narrative", Reason: "must not be empty"}
	}
	return nil
}

// TriState models provider outcomes that can be affirmative, negative, or not
// yet determinable. The zero value is Unknown so a partially parsed response
// never reads as a definitive answer.
type TriState int8

const (
	Unknown TriState = iota
	Succeeded
	Failed
)

func (t TriState) String() string {
	switch t {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the canonical outcome every adapter normalizes provider responses
// into. It is always fully populated: transport and parse faults become a
// Failed result with a classified message, never a partially filled value.
type Result struct {
	Outcome       TriState
	StatusCode    string
	Message       string
	TransactionID string
	// Raw preserves the provider payload for diagnostics. Empty when the
	// call never produced a response body.
	Raw []byte
}

// Ack is the canonical acknowledgement of an OTP send or resend.
type Ack struct {
	Delivered  bool
	StatusCode string
	Message    string
	RequestID  string
	Raw        []byte
}

// CustomData is the caller-owned key/value blob attached to an invoice. The
// transaction id is the caller's idempotency key and must round-trip through
// the provider unchanged.
type CustomData struct {
	TransactionID string
	Extra         map[string]string
}

// InvoiceSession is the hosted-payment session handed back by a successful
// invoice creation. Presenting RedirectURL to the payer is the caller's job.
type InvoiceSession struct {
	RedirectURL string
	Token       string
	CustomData  CustomData
}

// InvoiceResult pairs the canonical result with the session created on
// success. Session is meaningful only when Outcome is Succeeded.
type InvoiceResult struct {
	Result
	Session InvoiceSession
}

// Validator is the capability every provider adapter shares: commit one
// payment and normalize whatever the provider answers. The returned error is
// non-nil only for caller-input contract violations.
type Validator interface {
	ValidatePayment(ctx context.Context, req OTPRequest) (Result, error)
}

// OTPIssuer is implemented by providers that push OTPs to the payer
// themselves. Resending is operationally identical to sending apart from the
// provider command invoked.
type OTPIssuer interface {
	SendOTP(ctx context.Context, phone string, amount int64, reference string) (Ack, error)
	ResendOTP(ctx context.Context, phone string, amount int64, reference string) (Ack, error)
}
