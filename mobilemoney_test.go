package mobilemoney

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/etimbre/mobilemoney/ligdicash"
	"github.com/etimbre/mobilemoney/pay"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	moovCred, err := pay.NewCredential("moov-user", "moov-pass")
	require.NoError(t, err)
	orangeCred, err := pay.NewMerchantCredential("om-user", "om-pass", "70102030")
	require.NoError(t, err)
	ligdiCred, err := pay.NewCredential("ldg-key", "ldg-token")
	require.NoError(t, err)

	return Config{
		Environment:         pay.Dev,
		MoovEndpoint:        "https://moov.example/api",
		MoovCredential:      moovCred,
		OrangeCredential:    orangeCred,
		LigdicashCredential: ligdiCred,
	}
}

func TestNewWiresConfiguredProviders(t *testing.T) {
	f, err := New(testConfig(t))
	require.NoError(t, err)
	require.Contains(t, f.validators, ProviderMoov)
	require.Contains(t, f.validators, ProviderOrange)
	require.NotNil(t, f.invoices)
}

func TestSendOTPUnsupportedForOrange(t *testing.T) {
	f, err := New(testConfig(t))
	require.NoError(t, err)

	_, err = f.SendOTP(context.Background(), ProviderOrange, "65010203", 100, "")
	require.ErrorIs(t, err, pay.ErrUnsupportedOperation)

	_, err = f.ResendOTP(context.Background(), ProviderOrange, "65010203", 100, "")
	require.ErrorIs(t, err, pay.ErrUnsupportedOperation)
}

func TestDispatchToUnconfiguredProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.MoovCredential = pay.Credential{}
	cfg.LigdicashCredential = pay.Credential{}

	f, err := New(cfg)
	require.NoError(t, err)

	_, err = f.SendOTP(context.Background(), ProviderMoov, "65010203", 100, "")
	require.True(t, pay.IsConfigError(err))

	_, err = f.ValidateOTPPayment(context.Background(), ProviderMoov, pay.OTPRequest{})
	require.True(t, pay.IsConfigError(err))

	_, err = f.CreateInvoice(context.Background(), validFacadeCommand())
	require.True(t, pay.IsConfigError(err))

	_, _, err = f.VerifyInvoiceToken(context.Background(), "tok")
	require.True(t, pay.IsConfigError(err))
}

func TestNewSurfacesAdapterConfigErrors(t *testing.T) {
	cfg := testConfig(t)
	badOrange, err := pay.NewCredential("om-user", "om-pass")
	require.NoError(t, err)
	cfg.OrangeCredential = badOrange // missing merchant phone

	_, err = New(cfg)
	require.Error(t, err)

	var ce *pay.ConfigError
	require.True(t, errors.As(err, &ce))
}

func validFacadeCommand() (cmd ligdicash.Command) {
	cmd.Invoice.Items = []ligdicash.Item{{
		Name: "item", Description: "item", Quantity: 1, UnitPrice: 100, TotalPrice: 100,
	}}
	cmd.Invoice.TotalAmount = 100
	cmd.Invoice.Currency = "XOF"
	cmd.Actions.CancelURL = "https://s.example/c"
	cmd.Actions.ReturnURL = "https://s.example/r"
	cmd.Actions.CallbackURL = "https://s.example/cb"
	return cmd
}
