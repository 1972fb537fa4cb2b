package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBookingStatus(t *testing.T) {
	for _, raw := range []string{"requested", "accepted", "confirmed", "declined", "cancelled", "completed"} {
		st, err := ParseBookingStatus(raw)
		require.NoError(t, err)
		assert.Equal(t, BookingStatus(raw), st)
	}

	// Stored strings arrive in whatever shape the writer left them.
	st, err := ParseBookingStatus("  Confirmed ")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, st)

	_, err = ParseBookingStatus("tentative")
	assert.Error(t, err)
	_, err = ParseBookingStatus("")
	assert.Error(t, err)
}

func TestParsePaymentStatus(t *testing.T) {
	ps, err := ParsePaymentStatus("PAID")
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, ps)

	_, err = ParsePaymentStatus("comped")
	assert.Error(t, err)
}

func TestNormalizeOwnerRef(t *testing.T) {
	cases := map[string]string{
		"abc123":           "abc123",
		"coaches/abc123":   "abc123",
		"/coaches/abc123":  "abc123",
		"clients/u9":       "u9",
		"/clients/u9/":     "u9",
		"  spaced  ":       "spaced",
		"":                 "",
		"   ":              "",
		"/":                "",
		"coaches/a/b/c123": "c123",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeOwnerRef(in), "input %q", in)
	}
}
