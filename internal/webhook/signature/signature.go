// Package signature authenticates webhook deliveries with the HMAC-SHA256
// scheme the billing provider signs with: hex(HMAC(secret, ts + ":" + body)).
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/vocaldesk/vocaldesk/internal/clock"
	"github.com/vocaldesk/vocaldesk/internal/config"
	"github.com/vocaldesk/vocaldesk/internal/webhook/domain"
)

// Verifier checks delivery signatures and rejects replayed timestamps.
type Verifier struct {
	secret  []byte
	maxSkew time.Duration
	clock   clock.Clock
}

func NewVerifier(cfg config.Config, clk clock.Clock) *Verifier {
	return &Verifier{
		secret:  []byte(cfg.WebhookSecret),
		maxSkew: cfg.WebhookMaxSkew,
		clock:   clk,
	}
}

// Verify authenticates one delivery. The timestamp is bound into the
// signed message, so an attacker cannot refresh a captured delivery.
func (v *Verifier) Verify(raw []byte, signature, timestamp string) error {
	if len(v.secret) == 0 {
		return domain.ErrSecretNotConfigured
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return domain.ErrInvalidTimestamp
	}

	now := v.clock.Now()
	sent := time.Unix(ts, 0).UTC()
	if sent.After(now) {
		return domain.ErrInvalidTimestamp
	}
	if now.Sub(sent) > v.maxSkew {
		return domain.ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strings.TrimSpace(timestamp)))
	mac.Write([]byte(":"))
	mac.Write(raw)
	expected := hex.EncodeToString(mac.Sum(nil))

	provided := strings.TrimSpace(strings.ToLower(signature))
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return domain.ErrInvalidSignature
	}
	return nil
}
