package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierTableResolve(t *testing.T) {
	table := NewTierTable(map[string]Tier{
		"price_pro_monthly": TierPro,
		"price_scale_yearly": TierScale,
	})

	tests := []struct {
		name      string
		priceID   string
		wantTier  Tier
		wantKnown bool
	}{
		{name: "known price", priceID: "price_pro_monthly", wantTier: TierPro, wantKnown: true},
		{name: "known yearly price", priceID: "price_scale_yearly", wantTier: TierScale, wantKnown: true},
		{name: "unknown price falls back", priceID: "price_enterprise", wantTier: TierStarter, wantKnown: false},
		{name: "empty price is free", priceID: "", wantTier: TierFree, wantKnown: true},
		{name: "whitespace price is free", priceID: "   ", wantTier: TierFree, wantKnown: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tier, known := table.Resolve(tc.priceID)
			assert.Equal(t, tc.wantTier, tier)
			assert.Equal(t, tc.wantKnown, known)
		})
	}
}

func TestDefaultTierTable(t *testing.T) {
	table := DefaultTierTable()

	tier, known := table.Resolve("price_starter_monthly")
	assert.True(t, known)
	assert.Equal(t, TierStarter, tier)

	tier, known = table.Resolve("price_pro_yearly")
	assert.True(t, known)
	assert.Equal(t, TierPro, tier)
}
