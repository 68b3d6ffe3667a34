package ligdicash

import (
	"fmt"
	"net/url"

	"github.com/etimbre/mobilemoney/pay"
)

// Item is one invoice line.
type Item struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	TotalPrice  int64  `json:"total_price"`
}

// Invoice is the billed content of a hosted-payment session.
type Invoice struct {
	Items       []Item `json:"items"`
	TotalAmount int64  `json:"total_amount"`
	Currency    string `json:"devise"`
	Description string `json:"description"`

	Customer          string `json:"customer,omitempty"`
	CustomerFirstname string `json:"customer_firstname,omitempty"`
	CustomerLastname  string `json:"customer_lastname,omitempty"`
	CustomerEmail     string `json:"customer_email,omitempty"`

	ExternalID string `json:"external_id,omitempty"`
	OTP        string `json:"otp,omitempty"`
}

// Store identifies the merchant site shown on the hosted payment page.
type Store struct {
	Name       string `json:"name"`
	WebsiteURL string `json:"website_url"`
}

// Actions are the redirect and callback URLs the hosted page drives the payer
// through. All three are required.
type Actions struct {
	CancelURL   string `json:"cancel_url"`
	ReturnURL   string `json:"return_url"`
	CallbackURL string `json:"callback_url"`
}

// Command is one hosted-invoice creation request.
type Command struct {
	Invoice    Invoice        `json:"invoice"`
	Store      Store          `json:"store"`
	Actions    Actions        `json:"actions"`
	CustomData pay.CustomData `json:"custom_data"`
}

// Validate reports the first contract violation, or nil. Line totals must be
// internally consistent: the provider's behavior on mismatched amounts is
// undocumented, so inconsistent commands are refused here instead of guessed
// at over the wire.
func (c Command) Validate() error {
	if len(c.Invoice.Items) == 0 {
		return &pay.ConfigError{Field: "invoice items", Reason: "at least one line item required"}
	}

	var sum int64
	for i, item := range c.Invoice.Items {
		if item.Quantity < 1 {
			return &pay.ConfigError{
				Field:  fmt.Sprintf("item %d quantity", i),
				Reason: "must be at least 1",
			}
		}
		if item.UnitPrice < 0 {
			return &pay.ConfigError{
				Field:  fmt.Sprintf("item %d unit price", i),
				Reason: "must not be negative",
			}
		}
		if item.Quantity*item.UnitPrice != item.TotalPrice {
			return &pay.ConfigError{
				Field:  fmt.Sprintf("item %d total", i),
				Reason: "must equal quantity times unit price",
			}
		}
		sum += item.TotalPrice
	}
	if sum != c.Invoice.TotalAmount {
		return &pay.ConfigError{Field: "total amount", Reason: "must equal the sum of line totals"}
	}

	if c.Invoice.Currency == "" {
		return &pay.ConfigError{Field: "currency", Reason: "must not be empty"}
	}

	for _, action := range []struct {
		name  string
		value string
	}{
		{"cancel url", c.Actions.CancelURL},
		{"return url", c.Actions.ReturnURL},
		{"callback url", c.Actions.CallbackURL},
	} {
		if !validURL(action.value) {
			return &pay.ConfigError{Field: action.name, Reason: "must be a valid URL"}
		}
	}

	return nil
}

func validURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
