// Package voice integrates with the voice platform that provisions phone
// numbers for accounts.
package voice

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Provider interface {
	// ReleasePhoneNumber releases the phone number provisioned for the
	// account. Releasing an account that holds no number is a no-op on the
	// platform side, so repeated calls are safe.
	ReleasePhoneNumber(ctx context.Context, accountID snowflake.ID) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) ReleasePhoneNumber(ctx context.Context, accountID snowflake.ID) error {
	return nil
}
