package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventTypeClassification(t *testing.T) {
	assert.True(t, EventSubscriptionCreated.Processed())
	assert.True(t, EventSubscriptionPaymentFailed.Processed())
	assert.False(t, EventSubscriptionCreated.Ignored())

	assert.True(t, EventType("transaction.completed").Ignored())
	assert.True(t, EventType("subscription.resumed").Ignored())
	assert.False(t, EventType("transaction.completed").Processed())

	assert.False(t, EventType("invoice.finalized").Processed())
	assert.False(t, EventType("invoice.finalized").Ignored())
}

func TestEventDataItemHelpers(t *testing.T) {
	empty := EventData{}
	assert.Equal(t, "", empty.PriceID())
	assert.Equal(t, 1, empty.Quantity())

	data := EventData{Items: []Item{{Price: Price{ID: "price_pro_monthly"}, Quantity: 3}}}
	assert.Equal(t, "price_pro_monthly", data.PriceID())
	assert.Equal(t, 3, data.Quantity())

	zeroQuantity := EventData{Items: []Item{{Price: Price{ID: "price_x"}}}}
	assert.Equal(t, 1, zeroQuantity.Quantity())
}
