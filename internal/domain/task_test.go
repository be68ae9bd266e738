package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatusTerminal(t *testing.T) {
	assert.False(t, TaskStatusPending.Terminal())
	assert.False(t, TaskStatusProcessing.Terminal())
	assert.True(t, TaskStatusCompleted.Terminal())
	assert.True(t, TaskStatusExpired.Terminal())
	assert.True(t, TaskStatusCancelled.Terminal())
}

func TestFinalAnswerAsJSONB(t *testing.T) {
	answer := FinalAnswer{
		Answer:     "you hold 42.5",
		Confidence: 85,
		Done:       []string{"checked balances"},
		PaymentIntent: &PaymentIntent{
			Recipient: "bob",
			Amount:    12.5,
			Currency:  "USD",
		},
	}

	encoded, err := answer.AsJSONB()
	require.NoError(t, err)
	assert.Equal(t, "you hold 42.5", encoded["answer"])
	assert.Equal(t, float64(85), encoded["confidence"])

	intent, ok := encoded["payment_intent"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "bob", intent["recipient"])
}

func TestFinalAnswerAsJSONBOmitsAbsentIntent(t *testing.T) {
	encoded, err := FinalAnswer{Answer: "info only", Confidence: 60}.AsJSONB()
	require.NoError(t, err)
	_, present := encoded["payment_intent"]
	assert.False(t, present)
}
