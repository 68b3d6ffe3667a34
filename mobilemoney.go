// Package mobilemoney is a unifying client for the Burkina Faso mobile-money
// gateways: Moov Money and Orange Money OTP direct debits, and Ligdicash
// hosted invoices. One facade, one normalized surface; each provider's wire
// peculiarities stay inside its adapter.
package mobilemoney

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/etimbre/mobilemoney/ligdicash"
	"github.com/etimbre/mobilemoney/moov"
	"github.com/etimbre/mobilemoney/orange"
	"github.com/etimbre/mobilemoney/pay"
	"github.com/etimbre/mobilemoney/reference"
)

// Provider selects the gateway an operation is dispatched to.
type Provider string

const (
	ProviderMoov      Provider = "moov"
	ProviderOrange    Provider = "orange"
	ProviderLigdicash Provider = "ligdicash"
)

// Config assembles a Facade. Only providers whose credential is set are
// wired; dispatching to an unconfigured provider is a configuration error,
// not a panic.
type Config struct {
	Environment pay.Environment

	// MoovEndpoint is the Moov Money API URL; Moov issues per-merchant
	// endpoints rather than publishing fixed ones.
	MoovEndpoint   string
	MoovCredential pay.Credential

	// OrangeCredential must carry the merchant MSISDN.
	OrangeCredential pay.Credential

	LigdicashCredential pay.Credential

	// VerifyTLS defaults to true; sandbox endpoints sometimes need it off.
	VerifyTLS *bool
	Timeout   time.Duration
	Logger    zerolog.Logger

	// MachineID seeds reference generation; 0 is fine for one process.
	MachineID int64
}

// Facade exposes the normalized operation set and dispatches to the right
// adapter. It performs no business logic beyond construction, reference
// defaulting, and delegation.
type Facade struct {
	validators map[Provider]pay.Validator
	issuers    map[Provider]pay.OTPIssuer
	invoices   *ligdicash.Client
	refs       *reference.Generator
	log        zerolog.Logger
}

// New wires a Facade from cfg.
func New(cfg Config) (*Facade, error) {
	refs, err := reference.NewGenerator(cfg.MachineID)
	if err != nil {
		return nil, err
	}

	verify := true
	if cfg.VerifyTLS != nil {
		verify = *cfg.VerifyTLS
	}

	f := &Facade{
		validators: make(map[Provider]pay.Validator),
		issuers:    make(map[Provider]pay.OTPIssuer),
		refs:       refs,
		log:        cfg.Logger,
	}

	if !cfg.MoovCredential.IsZero() {
		client, err := moov.New(cfg.MoovEndpoint, cfg.MoovCredential,
			moov.WithTimeout(cfg.Timeout),
			moov.WithTLSVerification(verify),
			moov.WithLogger(cfg.Logger),
		)
		if err != nil {
			return nil, err
		}
		f.validators[ProviderMoov] = client
		f.issuers[ProviderMoov] = client
	}

	if !cfg.OrangeCredential.IsZero() {
		client, err := orange.New(cfg.Environment, cfg.OrangeCredential,
			orange.WithTimeout(cfg.Timeout),
			orange.WithTLSVerification(verify),
			orange.WithLogger(cfg.Logger),
		)
		if err != nil {
			return nil, err
		}
		f.validators[ProviderOrange] = client
	}

	if !cfg.LigdicashCredential.IsZero() {
		client, err := ligdicash.New(cfg.Environment, cfg.LigdicashCredential,
			ligdicash.WithTimeout(cfg.Timeout),
			ligdicash.WithTLSVerification(verify),
			ligdicash.WithLogger(cfg.Logger),
		)
		if err != nil {
			return nil, err
		}
		f.invoices = client
	}

	return f, nil
}

// SendOTP asks p to push an OTP to the payer. reference may be empty; a
// generated one is used and echoed in the acknowledgement.
func (f *Facade) SendOTP(ctx context.Context, p Provider, phone string, amount int64, ref string) (pay.Ack, error) {
	issuer, err := f.issuer(p)
	if err != nil {
		return pay.Ack{}, err
	}
	return issuer.SendOTP(ctx, phone, amount, f.orGenerated(ref))
}

// ResendOTP re-pushes a previously issued OTP.
func (f *Facade) ResendOTP(ctx context.Context, p Provider, phone string, amount int64, ref string) (pay.Ack, error) {
	issuer, err := f.issuer(p)
	if err != nil {
		return pay.Ack{}, err
	}
	return issuer.ResendOTP(ctx, phone, amount, f.orGenerated(ref))
}

// ValidateOTPPayment commits an OTP-authorized debit through p.
func (f *Facade) ValidateOTPPayment(ctx context.Context, p Provider, req pay.OTPRequest) (pay.Result, error) {
	validator, ok := f.validators[p]
	if !ok {
		return pay.Result{}, f.unknown(p)
	}
	req.Reference = f.orGenerated(req.Reference)
	return validator.ValidatePayment(ctx, req)
}

// CreateInvoice opens a hosted-payment session. The command's transaction id
// is defaulted from the generator when the caller supplies none.
func (f *Facade) CreateInvoice(ctx context.Context, cmd ligdicash.Command) (pay.InvoiceResult, error) {
	if f.invoices == nil {
		return pay.InvoiceResult{}, f.unknown(ProviderLigdicash)
	}
	if cmd.CustomData.TransactionID == "" {
		cmd.CustomData.TransactionID = f.refs.TransactionID()
	}
	return f.invoices.CreateInvoice(ctx, cmd)
}

// VerifyInvoiceToken reports the completion state of an invoice session.
func (f *Facade) VerifyInvoiceToken(ctx context.Context, token string) (pay.TriState, pay.Result, error) {
	if f.invoices == nil {
		return pay.Unknown, pay.Result{}, f.unknown(ProviderLigdicash)
	}
	return f.invoices.VerifyToken(ctx, token)
}

func (f *Facade) issuer(p Provider) (pay.OTPIssuer, error) {
	if _, known := f.validators[p]; known {
		if issuer, ok := f.issuers[p]; ok {
			return issuer, nil
		}
		return nil, pay.ErrUnsupportedOperation
	}
	return nil, f.unknown(p)
}

func (f *Facade) unknown(p Provider) error {
	return &pay.ConfigError{Field: "provider", Reason: "not configured: " + string(p)}
}

func (f *Facade) orGenerated(ref string) string {
	if ref != "" {
		return ref
	}
	return f.refs.RequestID()
}
