package pay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCredentialRejectsEmptyParts(t *testing.T) {
	_, err := NewCredential("", "secret")
	require.Error(t, err)
	require.True(t, IsConfigError(err))

	_, err = NewCredential("key", "")
	require.Error(t, err)
	require.True(t, IsConfigError(err))
}

func TestNewMerchantCredentialRequiresPhone(t *testing.T) {
	_, err := NewMerchantCredential("key", "secret", "  ")
	require.Error(t, err)

	cred, err := NewMerchantCredential("key", "secret", "70102030")
	require.NoError(t, err)
	require.Equal(t, "70102030", cred.MerchantPhone())
}

func TestCredentialStringRedactsSecrets(t *testing.T) {
	cred, err := NewCredential("apiuser01", "hunter2hunter2")
	require.NoError(t, err)

	s := cred.String()
	require.NotContains(t, s, "hunter2")
	require.NotContains(t, s, "apiuser01")
	require.Contains(t, s, "[redacted]")
}

func TestNormalizeMSISDNIsIdempotent(t *testing.T) {
	require.Equal(t, "22664712648", NormalizeMSISDN("64712648"))
	require.Equal(t, "22664712648", NormalizeMSISDN("22664712648"))
}

func TestOTPRequestValidate(t *testing.T) {
	valid := OTPRequest{
		CustomerPhone:    "65010203",
		Amount:           100,
		OTP:              "123456",
		Narrative:        "order 42",
		OTPTransactionID: "T1",
	}
	require.NoError(t, valid.Validate())

	for name, mutate := range map[string]func(r *OTPRequest){
		"empty phone":     func(r *OTPRequest) { r.CustomerPhone = " " },
		"zero amount":     func(r *OTPRequest) { r.Amount = 0 },
		"negative amount": func(r *OTPRequest) { r.Amount = -5 },
		"empty otp":       func(r *OTPRequest) { r.OTP = "" },
		"empty narrative": func(r *OTPRequest) { r.Narrative = "" },
	} {
		t.Run(name, func(t *testing.T) {
			req := valid
			mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			require.True(t, IsConfigError(err))
		})
	}
}

func TestCustomDataJSONFlattens(t *testing.T) {
	in := CustomData{
		TransactionID: "2021000000001",
		Extra:         map[string]string{"logfile": "202110210048"},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var flat map[string]string
	require.NoError(t, json.Unmarshal(data, &flat))
	require.Equal(t, "2021000000001", flat["transaction_id"])
	require.Equal(t, "202110210048", flat["logfile"])

	var out CustomData
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, in, out)
}

func TestCustomDataUnmarshalStringifiesNonStrings(t *testing.T) {
	var out CustomData
	require.NoError(t, json.Unmarshal([]byte(`{"transaction_id":"T9","attempt":2}`), &out))
	require.Equal(t, "T9", out.TransactionID)
	require.Equal(t, "2", out.Extra["attempt"])
}

func TestTriStateZeroValueIsUnknown(t *testing.T) {
	var s TriState
	require.Equal(t, Unknown, s)
	require.Equal(t, "unknown", s.String())
}
