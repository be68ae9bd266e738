package services

import (
	"context"
	"testing"
	"time"

	"github.com/agora/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRates(rate float64) (*RatesService, *fakeSettingsRepo) {
	settings := newFakeSettingsRepo()
	svc := NewRatesService(settings, &fakeRateSource{rate: rate}, testLogger(), time.Hour)
	return svc, settings
}

func TestAskCreatesPendingTask(t *testing.T) {
	tasks := newFakeTaskRepo()
	rates, _ := newTestRates(2.5)
	rates.Refresh(context.Background())

	svc := NewQuestionService(tasks, rates, testLogger(), 5)
	task, err := svc.Ask(context.Background(), AskInput{
		RequesterID: "user-1",
		Question:    "what did I spend this week?",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, "en", task.Language)
	assert.Equal(t, 5, task.MaxRetries)
	assert.Equal(t, 2.5, task.ExchangeRate)

	stored := tasks.get(task.ID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.TaskStatusPending, stored.Status)
}

func TestAskValidatesInput(t *testing.T) {
	tasks := newFakeTaskRepo()
	rates, _ := newTestRates(1)
	svc := NewQuestionService(tasks, rates, testLogger(), 5)

	_, err := svc.Ask(context.Background(), AskInput{Question: "q"})
	assert.Error(t, err)

	_, err = svc.Ask(context.Background(), AskInput{RequesterID: "user-1"})
	assert.Error(t, err)
}

func TestAskDerivesMissingFieldsFromContext(t *testing.T) {
	tasks := newFakeTaskRepo()
	rates, _ := newTestRates(1)
	svc := NewQuestionService(tasks, rates, testLogger(), 5)

	task, err := svc.Ask(context.Background(), AskInput{
		RequesterID: "user-1",
		Question:    "q",
		PartialContext: domain.JSONB{
			string(domain.FieldWalletHoldings): []interface{}{},
			string(domain.FieldRelayProfile):   domain.JSONB{"name": "alice"},
		},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, domain.StringList{
		string(domain.FieldPendingTransfers),
		string(domain.FieldCommunityPosts),
	}, task.MissingFields)
}

func TestAskExplicitFieldsWin(t *testing.T) {
	tasks := newFakeTaskRepo()
	rates, _ := newTestRates(1)
	svc := NewQuestionService(tasks, rates, testLogger(), 5)

	task, err := svc.Ask(context.Background(), AskInput{
		RequesterID:   "user-1",
		Question:      "q",
		MissingFields: []domain.DataField{domain.FieldWalletHoldings},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StringList{string(domain.FieldWalletHoldings)}, task.MissingFields)
}

func TestAskSupersedesPriorPendingTask(t *testing.T) {
	tasks := newFakeTaskRepo()
	rates, _ := newTestRates(1)
	svc := NewQuestionService(tasks, rates, testLogger(), 5)

	first, err := svc.Ask(context.Background(), AskInput{RequesterID: "user-1", Question: "old"})
	require.NoError(t, err)
	second, err := svc.Ask(context.Background(), AskInput{RequesterID: "user-1", Question: "new"})
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusCancelled, tasks.get(first.ID).Status)
	assert.Equal(t, domain.TaskStatusPending, tasks.get(second.ID).Status)
}

func TestAskFreezesRatePerTask(t *testing.T) {
	tasks := newFakeTaskRepo()
	settings := newFakeSettingsRepo()
	source := &fakeRateSource{rate: 3}
	rates := NewRatesService(settings, source, testLogger(), time.Hour)
	rates.Refresh(context.Background())

	svc := NewQuestionService(tasks, rates, testLogger(), 5)
	first, err := svc.Ask(context.Background(), AskInput{RequesterID: "user-1", Question: "q"})
	require.NoError(t, err)

	source.rate = 7
	rates.Refresh(context.Background())
	second, err := svc.Ask(context.Background(), AskInput{RequesterID: "user-2", Question: "q"})
	require.NoError(t, err)

	assert.Equal(t, 3.0, first.ExchangeRate)
	assert.Equal(t, 7.0, second.ExchangeRate)
}
