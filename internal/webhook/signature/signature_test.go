package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vocaldesk/vocaldesk/internal/clock"
	"github.com/vocaldesk/vocaldesk/internal/config"
	"github.com/vocaldesk/vocaldesk/internal/webhook/domain"
)

const testSecret = "whsec_test_secret"

func signBody(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d:", ts)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newVerifier(clk clock.Clock) *Verifier {
	return NewVerifier(config.Config{
		WebhookSecret:  testSecret,
		WebhookMaxSkew: 300 * time.Second,
	}, clk)
}

func TestVerify_ValidSignature(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	v := newVerifier(clk)

	body := []byte(`{"event_id":"evt_1"}`)
	ts := now.Unix()

	err := v.Verify(body, signBody(testSecret, ts, body), fmt.Sprint(ts))
	assert.NoError(t, err)
}

func TestVerify_FlippedBodyByte(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := newVerifier(clock.NewFakeClock(now))

	body := []byte(`{"event_id":"evt_1"}`)
	ts := now.Unix()
	sig := signBody(testSecret, ts, body)

	tampered := append([]byte(nil), body...)
	tampered[5] ^= 0x01

	err := v.Verify(tampered, sig, fmt.Sprint(ts))
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestVerify_WrongSecret(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := newVerifier(clock.NewFakeClock(now))

	body := []byte(`{}`)
	ts := now.Unix()

	err := v.Verify(body, signBody("whsec_other", ts, body), fmt.Sprint(ts))
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestVerify_ReplayWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := newVerifier(clock.NewFakeClock(now))
	body := []byte(`{"event_id":"evt_1"}`)

	tests := []struct {
		name    string
		age     time.Duration
		wantErr error
	}{
		{name: "just inside window", age: 299 * time.Second, wantErr: nil},
		{name: "exactly at window", age: 300 * time.Second, wantErr: nil},
		{name: "just outside window", age: 301 * time.Second, wantErr: domain.ErrStaleTimestamp},
		{name: "one second in the future", age: -1 * time.Second, wantErr: domain.ErrInvalidTimestamp},
		{name: "future inside window", age: -250 * time.Second, wantErr: domain.ErrInvalidTimestamp},
		{name: "future outside window", age: -301 * time.Second, wantErr: domain.ErrInvalidTimestamp},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := now.Add(-tc.age).Unix()
			err := v.Verify(body, signBody(testSecret, ts, body), fmt.Sprint(ts))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerify_InvalidTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := newVerifier(clock.NewFakeClock(now))

	err := v.Verify([]byte(`{}`), "deadbeef", "not-a-number")
	assert.ErrorIs(t, err, domain.ErrInvalidTimestamp)

	err = v.Verify([]byte(`{}`), "deadbeef", "")
	assert.ErrorIs(t, err, domain.ErrInvalidTimestamp)
}

func TestVerify_SecretNotConfigured(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := NewVerifier(config.Config{WebhookMaxSkew: 300 * time.Second}, clock.NewFakeClock(now))

	ts := now.Unix()
	body := []byte(`{}`)
	err := v.Verify(body, signBody(testSecret, ts, body), fmt.Sprint(ts))
	assert.ErrorIs(t, err, domain.ErrSecretNotConfigured)
}
