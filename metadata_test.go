package shlink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestEvaluateAccessOrderExpiredBeatsExhausted(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	md := Metadata{
		ExpiresAt:   &past,
		MaxAccesses: intPtr(1),
		AccessCount: 5, // already well past max
	}
	require.Equal(t, ReasonExpired, evaluateAccess(md, "", now))
}

func TestEvaluateAccessOrderExhaustedBeatsPasscode(t *testing.T) {
	now := time.Now()
	md := Metadata{
		MaxAccesses: intPtr(1),
		AccessCount: 1,
		Passcode:    hashPasscode("secret"),
	}
	require.Equal(t, ReasonExhausted, evaluateAccess(md, "wrong", now))
}

func TestEvaluateAccessWrongPasscode(t *testing.T) {
	md := Metadata{Passcode: hashPasscode("secret42")}
	require.Equal(t, ReasonPasscode, evaluateAccess(md, "wrong", time.Now()))
	require.Equal(t, ReasonPasscode, evaluateAccess(md, "", time.Now()))
}

func TestEvaluateAccessCorrectPasscodeGranted(t *testing.T) {
	md := Metadata{Passcode: hashPasscode("secret42")}
	require.Equal(t, DenyReason(""), evaluateAccess(md, "secret42", time.Now()))
}

func TestEvaluateAccessExpiryInclusiveOfNow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	md := Metadata{ExpiresAt: &now}
	require.Equal(t, ReasonExpired, evaluateAccess(md, "", now))
}

func TestEvaluateAccessMaxAccessesZeroAlwaysDenied(t *testing.T) {
	md := Metadata{MaxAccesses: intPtr(0), AccessCount: 0}
	require.Equal(t, ReasonExhausted, evaluateAccess(md, "", time.Now()))
}

func TestEvaluateAccessNoRestrictionsGranted(t *testing.T) {
	require.Equal(t, DenyReason(""), evaluateAccess(Metadata{}, "", time.Now()))
}

func TestConstantTimeHexEqual(t *testing.T) {
	a := hashPasscode("x")
	b := hashPasscode("x")
	c := hashPasscode("y")
	require.True(t, constantTimeHexEqual(a, b))
	require.False(t, constantTimeHexEqual(a, c))
	require.False(t, constantTimeHexEqual(a, "short"))
}
