package handler

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/etimbre/mobilemoney/ligdicash"
	"github.com/etimbre/mobilemoney/pay"
)

// InvoiceClient defines the subset of the facade used by the processor.
type InvoiceClient interface {
	CreateInvoice(ctx context.Context, cmd ligdicash.Command) (pay.InvoiceResult, error)
	VerifyInvoiceToken(ctx context.Context, token string) (pay.TriState, pay.Result, error)
}

// CheckoutEvent represents the payload sent to the Lambda function: one
// item, one amount, one payer.
type CheckoutEvent struct {
	Amount        int64             `json:"amount"`
	ItemName      string            `json:"item_name"`
	Description   string            `json:"description,omitempty"`
	CustomerEmail string            `json:"customer_email,omitempty"`
	TransactionID string            `json:"transaction_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CheckoutResponse is emitted after processing completes. State is
// "completed", "failed", or "pending" when the payer had not finished before
// the polling window closed.
type CheckoutResponse struct {
	TransactionID string        `json:"transaction_id"`
	RedirectURL   string        `json:"redirect_url,omitempty"`
	Token         string        `json:"token,omitempty"`
	State         string        `json:"state"`
	Message       string        `json:"message,omitempty"`
	Request       CheckoutEvent `json:"request"`
}

// CallbackSender delivers checkout outcomes to downstream systems.
type CallbackSender interface {
	Send(ctx context.Context, payload CheckoutResponse) error
}

// Processor coordinates invoice creation and completion polling.
type Processor struct {
	client       InvoiceClient
	store        ligdicash.Store
	actions      ligdicash.Actions
	pollInterval time.Duration
	timeout      time.Duration
	log          zerolog.Logger
	callback     CallbackSender
}

// Option customizes the processor.
type Option func(*Processor)

// WithPollInterval adjusts the delay between verify calls.
func WithPollInterval(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithTimeout overrides the total polling window.
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger lets callers supply a structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Processor) {
		p.log = log
	}
}

// WithCallbackSender wires a callback destination invoked after processing
// concludes.
func WithCallbackSender(sender CallbackSender) Option {
	return func(p *Processor) {
		p.callback = sender
	}
}

// NewProcessor builds a Processor with sane defaults. store and actions are
// stamped onto every invoice the processor creates.
func NewProcessor(client InvoiceClient, store ligdicash.Store, actions ligdicash.Actions, opts ...Option) *Processor {
	p := &Processor{
		client:       client,
		store:        store,
		actions:      actions,
		pollInterval: 5 * time.Second,
		timeout:      5 * time.Minute,
		log:          zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Handle implements the AWS Lambda handler entry point.
func (p *Processor) Handle(ctx context.Context, event CheckoutEvent) (CheckoutResponse, error) {
	if err := validateEvent(event); err != nil {
		return CheckoutResponse{}, err
	}

	created, err := p.client.CreateInvoice(ctx, p.command(event))
	if err != nil {
		return CheckoutResponse{}, err
	}

	if created.Outcome != pay.Succeeded {
		resp := CheckoutResponse{
			TransactionID: created.TransactionID,
			State:         "failed",
			Message:       created.Message,
			Request:       event,
		}
		p.emitCallback(ctx, resp)
		return resp, nil
	}

	session := created.Session
	p.log.Info().
		Str("transaction_id", created.TransactionID).
		Str("redirect_url", session.RedirectURL).
		Msg("invoice created; polling for completion")

	state := p.pollCompletion(ctx, session.Token)

	resp := CheckoutResponse{
		TransactionID: session.CustomData.TransactionID,
		RedirectURL:   session.RedirectURL,
		Token:         session.Token,
		State:         stateLabel(state),
		Request:       event,
	}
	if state == pay.Unknown {
		resp.Message = "payment not confirmed within the polling window"
	}
	p.emitCallback(ctx, resp)
	return resp, nil
}

// pollCompletion returns Unknown when the window closes before the provider
// reports a terminal state.
func (p *Processor) pollCompletion(ctx context.Context, token string) pay.TriState {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		state, res, err := p.client.VerifyInvoiceToken(ctx, token)
		if err != nil {
			p.log.Error().Err(err).Msg("verify call rejected")
			return pay.Unknown
		}
		if state != pay.Unknown {
			return state
		}

		p.log.Debug().
			Str("status", res.StatusCode).
			Dur("wait", p.pollInterval).
			Msg("invoice still pending")

		select {
		case <-ctx.Done():
			return pay.Unknown
		case <-ticker.C:
		}
	}
}

func (p *Processor) command(event CheckoutEvent) ligdicash.Command {
	description := event.Description
	if description == "" {
		description = event.ItemName
	}
	return ligdicash.Command{
		Invoice: ligdicash.Invoice{
			Items: []ligdicash.Item{{
				Name:        event.ItemName,
				Description: description,
				Quantity:    1,
				UnitPrice:   event.Amount,
				TotalPrice:  event.Amount,
			}},
			TotalAmount:   event.Amount,
			Currency:      "XOF",
			Description:   description,
			CustomerEmail: event.CustomerEmail,
		},
		Store:   p.store,
		Actions: p.actions,
		CustomData: pay.CustomData{
			TransactionID: event.TransactionID,
			Extra:         event.Metadata,
		},
	}
}

func stateLabel(state pay.TriState) string {
	switch state {
	case pay.Succeeded:
		return "completed"
	case pay.Failed:
		return "failed"
	default:
		return "pending"
	}
}

func validateEvent(event CheckoutEvent) error {
	if strings.TrimSpace(event.ItemName) == "" {
		return &pay.ConfigError{Field: "item name", Reason: "must not be empty"}
	}
	if event.Amount <= 0 {
		return &pay.ConfigError{Field: "amount", Reason: "must be a positive integer"}
	}
	return nil
}

func (p *Processor) emitCallback(ctx context.Context, resp CheckoutResponse) {
	if p.callback == nil {
		return
	}
	if err := p.callback.Send(ctx, resp); err != nil {
		p.log.Warn().Err(err).Msg("callback delivery failed")
	}
}
