package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agora/backend/internal/core/ports"
	"github.com/agora/backend/internal/domain"
	"github.com/agora/backend/internal/infrastructure/logger"
)

const (
	proposerSystemPrompt = `You are the proposer in a three-stage reasoning protocol for a community
wallet assistant. Given a user question and the data context, produce your best
structured proposal. Respond with a single JSON object and nothing else:
{"answer": string, "assumptions": [string], "reasoning_steps": [string],
"unknowns": [string], "risks": [string], "clarifying_questions": [string, max 3],
"payment_intent": {"recipient": string, "amount": number, "currency": string,
"memo": string} or omitted}. Include payment_intent only when the user clearly
wants to initiate a transfer. Answer in the requested language.`

	criticSystemPrompt = `You are the critic in a three-stage reasoning protocol. Review the proposer's
output for risk only; do not re-litigate any payment intent it contains.
Respond with a single JSON object and nothing else:
{"unverified_claims": [string], "failure_modes": [string],
"missing_information": [string], "recommended_changes": [string]}.`

	arbitratorSystemPrompt = `You are the arbitrator in a three-stage reasoning protocol. Synthesize the
proposal and the critique into one final result. If the proposal contains a
payment_intent you must copy it through unchanged. Respond with a single JSON
object and nothing else:
{"answer": string, "confidence": number from 0 to 100, "done": [string],
"not_done": [string], "next_step": string, "payment_intent": copied or omitted}.
Answer in the requested language.`
)

// ReasoningService runs the proposer -> critic -> arbitrator triad over the
// language-completion collaborator. Stage outputs are parsed defensively;
// malformed output degrades to a deterministic fallback instead of aborting.
type ReasoningService struct {
	completer  ports.Completer
	logger     *logger.Logger
	promptCost float64
	outputCost float64
}

func NewReasoningService(completer ports.Completer, log *logger.Logger, promptCostPerTok, outputCostPerTok float64) *ReasoningService {
	return &ReasoningService{
		completer:  completer,
		logger:     log,
		promptCost: promptCostPerTok,
		outputCost: outputCostPerTok,
	}
}

// Model names the completion model for usage accounting.
func (s *ReasoningService) Model() string {
	return s.completer.Model()
}

// Cost derives the monetary cost of a run from the task's frozen exchange rate.
func (s *ReasoningService) Cost(usage domain.TokenUsage, exchangeRate float64) float64 {
	if exchangeRate <= 0 {
		exchangeRate = 1
	}
	return (float64(usage.PromptTokens)*s.promptCost + float64(usage.CompletionTokens)*s.outputCost) * exchangeRate
}

// Run executes the three stages sequentially over one shared usage
// accumulator. A completer error is a hard pipeline failure; usage gathered
// up to that point is still returned so the caller can persist it.
func (s *ReasoningService) Run(ctx context.Context, task *domain.Task, enriched map[domain.DataField]domain.EnrichmentResult, kb []domain.KnowledgeEntry) (*domain.FinalAnswer, domain.TokenUsage, error) {
	var usage domain.TokenUsage

	contextBlock := buildContextBlock(task, enriched)
	kbBlock := buildKnowledgeBlock(kb)

	// Stage 1: proposer
	proposerMsg := fmt.Sprintf("Question (%s): %s\n\nContext:\n%s\n\nKnowledge base:\n%s",
		task.Language, task.Question, contextBlock, kbBlock)
	proposerRaw, err := s.callStage(ctx, task.ID, "proposer", proposerSystemPrompt, proposerMsg, &usage)
	if err != nil {
		return nil, usage, fmt.Errorf("proposer stage: %w", err)
	}

	var proposal domain.Proposal
	if parseErr := unmarshalStageJSON(proposerRaw, &proposal); parseErr != nil {
		s.logger.Warnw("reasoning_proposer_parse_fallback", "task_id", task.ID, "error", parseErr)
		proposal = fallbackProposal(proposerRaw)
	}

	// Stage 2: critic
	proposalJSON, _ := json.Marshal(proposal)
	criticMsg := fmt.Sprintf("Question (%s): %s\n\nProposal:\n%s\n\nContext:\n%s",
		task.Language, task.Question, proposalJSON, contextBlock)
	criticRaw, err := s.callStage(ctx, task.ID, "critic", criticSystemPrompt, criticMsg, &usage)
	if err != nil {
		return nil, usage, fmt.Errorf("critic stage: %w", err)
	}

	var critique domain.Critique
	if parseErr := unmarshalStageJSON(criticRaw, &critique); parseErr != nil {
		s.logger.Warnw("reasoning_critic_parse_fallback", "task_id", task.ID, "error", parseErr)
		critique = fallbackCritique(criticRaw)
	}

	// Stage 3: arbitrator
	critiqueJSON, _ := json.Marshal(critique)
	arbitratorMsg := fmt.Sprintf("Question (%s): %s\n\nProposal:\n%s\n\nCritique:\n%s\n\nContext:\n%s",
		task.Language, task.Question, proposalJSON, critiqueJSON, contextBlock)
	arbitratorRaw, err := s.callStage(ctx, task.ID, "arbitrator", arbitratorSystemPrompt, arbitratorMsg, &usage)
	if err != nil {
		return nil, usage, fmt.Errorf("arbitrator stage: %w", err)
	}

	var final domain.FinalAnswer
	if parseErr := unmarshalStageJSON(arbitratorRaw, &final); parseErr != nil {
		s.logger.Warnw("reasoning_arbitrator_parse_fallback", "task_id", task.ID, "error", parseErr)
		final = fallbackFinal(arbitratorRaw, proposal)
	}

	if final.Confidence < 0 {
		final.Confidence = 0
	}
	if final.Confidence > 100 {
		final.Confidence = 100
	}

	// Downstream UI gating depends on the intent's presence: restore it
	// verbatim if the model dropped or mutated it
	if proposal.PaymentIntent != nil {
		intent := *proposal.PaymentIntent
		final.PaymentIntent = &intent
	}

	s.logger.Infow("reasoning_run_done",
		"task_id", task.ID,
		"confidence", final.Confidence,
		"payment_intent", final.PaymentIntent != nil,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
	)
	return &final, usage, nil
}

func (s *ReasoningService) callStage(ctx context.Context, taskID, stage, system, user string, usage *domain.TokenUsage) (string, error) {
	result, err := s.completer.Complete(ctx, system, user)
	if err != nil {
		s.logger.Errorw("reasoning_stage_failed", "task_id", taskID, "stage", stage, "error", err)
		return "", err
	}
	usage.Add(result.Usage)
	return result.Text, nil
}

func buildContextBlock(task *domain.Task, enriched map[domain.DataField]domain.EnrichmentResult) string {
	merged := domain.JSONB{}
	for k, v := range task.PartialContext {
		merged[k] = v
	}
	for field, result := range enriched {
		if result.Usable() {
			merged[string(field)] = result.Records
		}
	}
	if task.PartialAnswer != nil && *task.PartialAnswer != "" {
		merged["partial_answer"] = *task.PartialAnswer
	}
	raw, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func buildKnowledgeBlock(entries []domain.KnowledgeEntry) string {
	if len(entries) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s\n%s\n", i+1, e.Title, e.Body)
	}
	return b.String()
}

// unmarshalStageJSON extracts a single JSON object from raw model output,
// tolerating markdown code fences and surrounding prose.
func unmarshalStageJSON(raw string, out interface{}) error {
	extracted, err := extractJSONObject(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(extracted), out)
}

func extractJSONObject(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	// Strip a surrounding ``` or ```json fence if present
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object found in stage output")
	}
	return text[start : end+1], nil
}

func fallbackProposal(raw string) domain.Proposal {
	return domain.Proposal{
		Answer:   strings.TrimSpace(raw),
		Unknowns: []string{"proposal was free-form text, structure unavailable"},
	}
}

func fallbackCritique(raw string) domain.Critique {
	return domain.Critique{
		UnverifiedClaims: []string{strings.TrimSpace(raw)},
	}
}

func fallbackFinal(raw string, proposal domain.Proposal) domain.FinalAnswer {
	answer := strings.TrimSpace(raw)
	if answer == "" {
		answer = proposal.Answer
	}
	return domain.FinalAnswer{
		Answer:     answer,
		Confidence: 30,
		NotDone:    []string{"arbitrator output could not be parsed"},
		NextStep:   "ask the question again with more detail",
	}
}
