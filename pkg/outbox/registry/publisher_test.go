package registry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hydromart/marketplace-backend/pkg/config"
	"github.com/hydromart/marketplace-backend/pkg/db/models"
	"github.com/hydromart/marketplace-backend/pkg/enums"
	"github.com/hydromart/marketplace-backend/pkg/outbox"
	"github.com/hydromart/marketplace-backend/pkg/outbox/payloads"
)

func newRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{SettlementTopic: "settlement"})
	require.NoError(t, err)
	return reg
}

func envelopeFor(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), Data: raw})
	require.NoError(t, err)
	return env
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	require.Error(t, err)
}

func TestResolveDecodesVendorCredit(t *testing.T) {
	reg := newRegistry(t)
	vendorID := uuid.New()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventVendorCredited,
		AggregateType: enums.AggregateVendor,
		AggregateID:   vendorID,
		Payload: envelopeFor(t, payloads.VendorCreditedEvent{
			VendorID:    vendorID,
			AmountCents: 100,
		}),
	}

	resolved, err := reg.Resolve(row)
	require.NoError(t, err)
	require.Equal(t, "settlement", resolved.Descriptor.Topic)
	payload, ok := resolved.Payload.(*payloads.VendorCreditedEvent)
	require.True(t, ok)
	require.Equal(t, 100, payload.AmountCents)
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newRegistry(t)
	aggregateID := uuid.New()

	cases := map[string]models.OutboxEvent{
		"unknown type": {EventType: "nope", AggregateType: enums.AggregateOrder, AggregateID: aggregateID},
		"aggregate mismatch": {
			EventType: enums.EventVendorCredited, AggregateType: enums.AggregateOrder, AggregateID: aggregateID,
			Payload: envelopeFor(t, payloads.VendorCreditedEvent{}),
		},
		"missing aggregate": {EventType: enums.EventOrderCanceled, AggregateType: enums.AggregateOrder},
		"bad payload": {
			EventType: enums.EventOrderCanceled, AggregateType: enums.AggregateOrder, AggregateID: aggregateID,
			Payload: json.RawMessage(`{"eventId":"x","data":{"unexpected":true}}`),
		},
	}
	for name, row := range cases {
		_, err := reg.Resolve(row)
		require.Error(t, err, name)
		var nonRetry NonRetryableError
		require.True(t, errors.As(err, &nonRetry), name)
	}
}
