package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hydromart/marketplace-backend/pkg/config"
	"github.com/hydromart/marketplace-backend/pkg/db"
	"github.com/hydromart/marketplace-backend/pkg/db/models"
	"github.com/hydromart/marketplace-backend/pkg/enums"
	"github.com/hydromart/marketplace-backend/pkg/logger"
	"github.com/hydromart/marketplace-backend/pkg/outbox"
	"github.com/hydromart/marketplace-backend/pkg/outbox/payloads"
	"github.com/hydromart/marketplace-backend/pkg/outbox/registry"
)

func creditEvent(t testing.TB, attempts int) models.OutboxEvent {
	t.Helper()
	vendorID := uuid.New()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventVendorCredited,
		AggregateType: enums.AggregateVendor,
		AggregateID:   vendorID,
		Payload:       mustEnvelopePayload(t, payloads.VendorCreditedEvent{VendorID: vendorID, AmountCents: 250}),
		AttemptCount:  attempts,
	}
}

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{creditEvent(t, 0), creditEvent(t, 0)}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub, nil)

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []uuid.UUID{repo.events[0].ID}, repo.failed)
	require.Equal(t, []uuid.UUID{repo.events[1].ID}, repo.published)
	require.Empty(t, repo.terminal)

	require.Len(t, pub.messages, 2)
	attrs := pub.messages[1].Attributes
	require.Equal(t, string(enums.EventVendorCredited), attrs["event_type"])
	require.Equal(t, repo.events[1].AggregateID.String(), attrs["aggregate_id"])
	require.Equal(t, "1", attrs["schema_version"])
	require.Equal(t, repo.events[1].AggregateID.String(), pub.messages[1].OrderingKey)
}

func TestServiceProcessBatchHoldsAggregateAfterFailure(t *testing.T) {
	first := creditEvent(t, 0)
	second := creditEvent(t, 0)
	second.AggregateID = first.AggregateID
	other := creditEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second, other}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub, &config.OutboxConfig{BatchSize: 3, PollIntervalMS: 100, MaxAttempts: 5})

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	require.Equal(t, []uuid.UUID{other.ID}, repo.published)
	require.Empty(t, repo.terminal)
	require.Len(t, pub.messages, 2)
	require.Equal(t, other.AggregateID.String(), pub.messages[1].OrderingKey)
}

func TestServiceReusesPublisherPerTopic(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{creditEvent(t, 0), creditEvent(t, 0)}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}, fakePublishResult{}}}
	service := newTestService(t, repo, pub, nil)
	built := 0
	service.publisherFactory = func(string) publisher {
		built++
		return pub
	}

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, repo.published, 2)
	require.Equal(t, 1, built)

	service.stopPublishers()
	require.True(t, pub.stopped)
	require.Empty(t, service.publishers)
}

func TestServiceProcessBatchParksUnresolvableRows(t *testing.T) {
	bad := creditEvent(t, 0)
	bad.AggregateType = enums.AggregateOrder
	repo := &fakeRepo{events: []models.OutboxEvent{bad}}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub, nil)

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []uuid.UUID{bad.ID}, repo.terminal)
	require.Equal(t, 5, repo.terminalAttempts)
	require.Empty(t, pub.messages)
}

func TestServiceProcessBatchParksAfterMaxAttempts(t *testing.T) {
	event := creditEvent(t, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}}
	service := newTestService(t, repo, pub, &config.OutboxConfig{BatchSize: 1, PollIntervalMS: 100, MaxAttempts: 2})

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
	require.Equal(t, 2, repo.terminalAttempts)
	require.Empty(t, repo.failed)
}

func TestServiceProcessBatchMissingPublisherIsTerminal(t *testing.T) {
	event := creditEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	service := newTestService(t, repo, nil, nil)
	service.publisherFactory = func(string) publisher { return nil }

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestServicePublishesRowsFromDatabase(t *testing.T) {
	dsn := "file:outbox_pub_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))
	client := db.NewFromConn(conn)

	logg := logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard})
	repo := outbox.NewRepository(conn)
	emitter := outbox.NewService(repo, logg)
	orderID := uuid.New()
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return emitter.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          payloads.OrderCanceledEvent{OrderID: orderID, OrderNumber: "HM-1", Reason: "payment failed"},
		})
	}))

	eventRegistry, err := registry.NewEventRegistry(config.PubSubConfig{SettlementTopic: "settlement"})
	require.NoError(t, err)
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	var topics []string
	service, err := NewService(ServiceParams{
		Config:     &config.Config{Outbox: config.OutboxConfig{BatchSize: 10, MaxAttempts: 3}},
		Logger:     logg,
		DB:         client,
		PubSub:     &fakePubSubClient{},
		Repository: repo,
		Registry:   eventRegistry,
		PublisherFactory: func(topic string) publisher {
			topics = append(topics, topic)
			return pub
		},
	})
	require.NoError(t, err)

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []string{"settlement"}, topics)

	rows, err := repo.ListByAggregate(orderID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].PublishedAt)

	processed, err = service.processBatch(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
}

func TestNextBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, 200*time.Millisecond, nextBackoff(base, base, maxBackoff))
	require.Equal(t, 200*time.Millisecond, nextBackoff(0, base, maxBackoff))
	require.Equal(t, maxBackoff, nextBackoff(8*time.Second, base, maxBackoff))
	require.Zero(t, withJitter(0))
	require.GreaterOrEqual(t, withJitter(base), base)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, outboxCfgOverride *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	eventRegistry, err := registry.NewEventRegistry(config.PubSubConfig{SettlementTopic: "settlement"})
	require.NoError(t, err)
	service, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         eventRegistry,
		PublisherFactory: func(_ string) publisher { return pub },
	})
	require.NoError(t, err)
	return service
}

func mustEnvelopePayload(tb testing.TB, data any) json.RawMessage {
	tb.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		tb.Fatalf("marshal data: %v", err)
	}
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       raw,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events           []models.OutboxEvent
	published        []uuid.UUID
	failed           []uuid.UUID
	terminal         []uuid.UUID
	terminalAttempts int
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	f.terminalAttempts = terminalAttempts
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) Publisher(name string) *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
	stopped  bool
}

func (f *fakePublisher) Stop() {
	f.stopped = true
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}
