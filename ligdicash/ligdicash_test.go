package ligdicash

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/etimbre/mobilemoney/pay"
	"github.com/etimbre/mobilemoney/transport"
)

func mustCredential(t *testing.T) pay.Credential {
	t.Helper()
	cred, err := pay.NewCredential("APIKEY123", "bearer-token-abc")
	require.NoError(t, err)
	return cred
}

func validCommand() Command {
	return Command{
		Invoice: Invoice{
			Items: []Item{{
				Name:        "Timbre fiscal",
				Description: "Timbre fiscal 100 XOF",
				Quantity:    1,
				UnitPrice:   100,
				TotalPrice:  100,
			}},
			TotalAmount: 100,
			Currency:    "XOF",
			Description: "Achat de timbre",
		},
		Store: Store{
			Name:       "e-timbre",
			WebsiteURL: "https://etimbre.example",
		},
		Actions: Actions{
			CancelURL:   "https://etimbre.example/cancel",
			ReturnURL:   "https://etimbre.example/return",
			CallbackURL: "https://etimbre.example/callback",
		},
		CustomData: pay.CustomData{TransactionID: "2021000000001"},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(pay.Prod, mustCredential(t), WithBaseURL(server.URL))
	require.NoError(t, err)
	return client
}

func TestCreateInvoiceEchoesCustomData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "APIKEY123", r.Header.Get("Apikey"))
		require.Equal(t, "Bearer bearer-token-abc", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req struct {
			Commande struct {
				CustomData map[string]string `json:"custom_data"`
				Invoice    struct {
					TotalAmount int64 `json:"total_amount"`
				} `json:"invoice"`
			} `json:"commande"`
		}
		require.NoError(t, json.Unmarshal(raw, &req))
		require.Equal(t, int64(100), req.Commande.Invoice.TotalAmount)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"response_code": "00",
			"token":         "tok-1",
			"response_text": "https://pay.example/invoice/tok-1",
			"description":   "",
			"custom_data": map[string]string{
				"transaction_id": req.Commande.CustomData["transaction_id"],
				"logfile":        "2023022318241263f7",
			},
		})
	})

	res, err := client.CreateInvoice(context.Background(), validCommand())
	require.NoError(t, err)
	require.Equal(t, pay.Succeeded, res.Outcome)
	require.Equal(t, "2021000000001", res.Session.CustomData.TransactionID)
	require.Equal(t, "https://pay.example/invoice/tok-1", res.Session.RedirectURL)
	require.Equal(t, "tok-1", res.Session.Token)
}

func TestCreateInvoiceProviderRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response_code": "40",
			"description":   "invalid api key",
		})
	})

	res, err := client.CreateInvoice(context.Background(), validCommand())
	require.NoError(t, err)
	require.Equal(t, pay.Failed, res.Outcome)
	require.Equal(t, "40", res.StatusCode)
	require.Equal(t, "invalid api key", res.Message)
	require.Empty(t, res.Session.Token)
}

func TestCreateInvoiceValidatesBeforeCalling(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls++ })

	cmd := validCommand()
	cmd.Invoice.TotalAmount = 250

	_, err := client.CreateInvoice(context.Background(), cmd)
	require.Error(t, err)
	require.True(t, pay.IsConfigError(err))
	require.Zero(t, calls)
}

func TestCreateInvoiceTransportFailure(t *testing.T) {
	client, err := New(pay.Prod, mustCredential(t), WithCallFunc(func(ctx context.Context, req transport.Request) transport.Outcome {
		return transport.Outcome{Failure: &transport.Failure{Kind: transport.KindConnection, Detail: "refused"}}
	}))
	require.NoError(t, err)

	res, err := client.CreateInvoice(context.Background(), validCommand())
	require.NoError(t, err)
	require.Equal(t, pay.Failed, res.Outcome)
	require.Equal(t, StatusTransport, res.StatusCode)
	require.Equal(t, "connection error", res.Message)
	require.Equal(t, "2021000000001", res.TransactionID)
}

func TestVerifyTokenMapping(t *testing.T) {
	cases := map[string]pay.TriState{
		"completed":   pay.Succeeded,
		"nocompleted": pay.Failed,
		"pending":     pay.Unknown,
		"weird":       pay.Unknown,
	}

	for status, want := range cases {
		t.Run(status, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "tok-1", r.URL.Query().Get("invoiceToken"))
				_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
			})

			state, res, err := client.VerifyToken(context.Background(), "tok-1")
			require.NoError(t, err)
			require.Equal(t, want, state)
			require.Equal(t, status, res.StatusCode)
		})
	}
}

func TestVerifyTokenTransportHiccupIsUnknown(t *testing.T) {
	client, err := New(pay.Prod, mustCredential(t), WithCallFunc(func(ctx context.Context, req transport.Request) transport.Outcome {
		return transport.Outcome{Failure: &transport.Failure{Kind: transport.KindTimeout, Detail: "deadline"}}
	}))
	require.NoError(t, err)

	state, res, err := client.VerifyToken(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Equal(t, pay.Unknown, state)
	require.Equal(t, StatusTransport, res.StatusCode)
}

func TestVerifyTokenRequiresToken(t *testing.T) {
	client, err := New(pay.Prod, mustCredential(t))
	require.NoError(t, err)

	_, _, err = client.VerifyToken(context.Background(), "  ")
	require.Error(t, err)
	require.True(t, pay.IsConfigError(err))
}

func TestCommandValidate(t *testing.T) {
	for name, mutate := range map[string]func(c *Command){
		"no items":            func(c *Command) { c.Invoice.Items = nil },
		"zero quantity":       func(c *Command) { c.Invoice.Items[0].Quantity = 0 },
		"negative unit price": func(c *Command) { c.Invoice.Items[0].UnitPrice = -1 },
		"line total mismatch": func(c *Command) { c.Invoice.Items[0].TotalPrice = 999 },
		"sum mismatch":        func(c *Command) { c.Invoice.TotalAmount = 999 },
		"empty currency":      func(c *Command) { c.Invoice.Currency = "" },
		"bad cancel url":      func(c *Command) { c.Actions.CancelURL = "not-a-url" },
		"bad return url":      func(c *Command) { c.Actions.ReturnURL = "" },
		"bad callback url":    func(c *Command) { c.Actions.CallbackURL = "./relative" },
	} {
		t.Run(name, func(t *testing.T) {
			cmd := validCommand()
			mutate(&cmd)
			err := cmd.Validate()
			require.Error(t, err)
			require.True(t, pay.IsConfigError(err))
		})
	}

	require.NoError(t, validCommand().Validate())
}
