package reference

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	at := time.Date(2026, 8, 31, 14, 2, 5, 123456000, time.UTC)
	return func() time.Time { return at }
}

func TestRequestIDCarriesTimestampPrefix(t *testing.T) {
	gen, err := NewGenerator(0, WithClock(fixedClock()))
	require.NoError(t, err)

	id := gen.RequestID()
	require.True(t, strings.HasPrefix(id, "2026.08.31.14.02.05.123456."), id)
}

func TestTransactionIDShape(t *testing.T) {
	gen, err := NewGenerator(0, WithClock(fixedClock()))
	require.NoError(t, err)

	id := gen.TransactionID()
	require.True(t, strings.HasPrefix(id, "LDG20260831.140205.C"), id)
	require.Greater(t, len(id), len("LDG20260831.140205.C"))
}

func TestReferencesAreUnique(t *testing.T) {
	gen, err := NewGenerator(1)
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := gen.RequestID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate reference %s", id)
		seen[id] = struct{}{}
	}
}

func TestGeneratorRejectsOutOfRangeMachineID(t *testing.T) {
	_, err := NewGenerator(1 << 20)
	require.Error(t, err)
}
