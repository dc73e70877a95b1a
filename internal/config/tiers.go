package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Tier is the plan classification derived from a purchased price id.
type Tier string

const (
	TierFree    Tier = "free"
	TierStarter Tier = "starter"
	TierPro     Tier = "pro"
	TierScale   Tier = "scale"
)

// LowestPaidTier is the fallback for price ids the table does not know.
const LowestPaidTier = TierStarter

// TierTable maps provider price ids to tiers. It is built once at startup
// and injected; components never read it from ambient state.
type TierTable struct {
	prices map[string]Tier
}

func DefaultTierTable() TierTable {
	return TierTable{prices: map[string]Tier{
		"price_starter_monthly": TierStarter,
		"price_starter_yearly":  TierStarter,
		"price_pro_monthly":     TierPro,
		"price_pro_yearly":      TierPro,
		"price_scale_monthly":   TierScale,
		"price_scale_yearly":    TierScale,
	}}
}

func NewTierTable(prices map[string]Tier) TierTable {
	copied := make(map[string]Tier, len(prices))
	for priceID, tier := range prices {
		priceID = strings.TrimSpace(priceID)
		if priceID == "" {
			continue
		}
		copied[priceID] = tier
	}
	return TierTable{prices: copied}
}

// Resolve maps a price id to a tier. A missing price id is the free tier;
// an unknown non-empty price id falls back to the lowest paid tier and
// reports known=false so the caller can log it.
func (t TierTable) Resolve(priceID string) (tier Tier, known bool) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return TierFree, true
	}
	if tier, ok := t.prices[priceID]; ok {
		return tier, true
	}
	return LowestPaidTier, false
}

// LoadTierTable reads the price-to-tier table from an optional tiers.yml.
// When no file is present the built-in defaults apply.
func LoadTierTable() (TierTable, error) {
	v := viper.New()

	v.SetConfigName("tiers")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/vocaldesk/config")
	v.AddConfigPath("/etc/vocaldesk")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return TierTable{}, err
		}
		return DefaultTierTable(), nil
	}

	raw := v.GetStringMapString("tiers.prices")
	if len(raw) == 0 {
		return DefaultTierTable(), nil
	}

	prices := make(map[string]Tier, len(raw))
	for priceID, tier := range raw {
		prices[priceID] = Tier(strings.ToLower(strings.TrimSpace(tier)))
	}
	return NewTierTable(prices), nil
}
