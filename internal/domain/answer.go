package domain

import "encoding/json"

// PaymentIntent signals the user wants to initiate a transfer. It is produced
// by the proposer stage and must ride through the arbitrator untouched; the
// UI gates its transfer screen on the object's presence.
type PaymentIntent struct {
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Memo      string  `json:"memo,omitempty"`
}

// Proposal is the structured output of the proposer stage.
type Proposal struct {
	Answer             string         `json:"answer"`
	Assumptions        []string       `json:"assumptions,omitempty"`
	ReasoningSteps     []string       `json:"reasoning_steps,omitempty"`
	Unknowns           []string       `json:"unknowns,omitempty"`
	Risks              []string       `json:"risks,omitempty"`
	ClarifyingQuestions []string      `json:"clarifying_questions,omitempty"`
	PaymentIntent      *PaymentIntent `json:"payment_intent,omitempty"`
}

// Critique is the structured output of the critic stage. It reviews risk
// orthogonally; it never re-litigates a payment intent already proposed.
type Critique struct {
	UnverifiedClaims   []string `json:"unverified_claims,omitempty"`
	FailureModes       []string `json:"failure_modes,omitempty"`
	MissingInformation []string `json:"missing_information,omitempty"`
	RecommendedChanges []string `json:"recommended_changes,omitempty"`
}

// FinalAnswer is the arbitrator's synthesis and the task's delivered result.
type FinalAnswer struct {
	Answer        string         `json:"answer"`
	Confidence    int            `json:"confidence"`
	Done          []string       `json:"done,omitempty"`
	NotDone       []string       `json:"not_done,omitempty"`
	NextStep      string         `json:"next_step,omitempty"`
	PaymentIntent *PaymentIntent `json:"payment_intent,omitempty"`
}

// AsJSONB converts the answer into the shape persisted on the task row.
func (a FinalAnswer) AsJSONB() (JSONB, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	var out JSONB
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TokenUsage accumulates token counts across the three pipeline stages.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
}

// Total returns the combined token count of the run.
func (u TokenUsage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}
