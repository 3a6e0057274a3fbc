package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/triage"
)

// RankWorkflows classifies the message intent and ranks candidate workflows
// by clinical relevance. The result is filtered to the supported workflow set
// and sorted by descending weight before it is returned.
func (c *Client) RankWorkflows(ctx context.Context, text string) (*models.RankingResult, error) {
	if strings.TrimSpace(text) == "" {
		return &models.RankingResult{Intent: models.IntentCase, Rankings: []models.Ranking{}}, nil
	}

	prompt := fmt.Sprintf(`Analyze this message sent by a doctor: %q

TASK: Classify the intent and rank potential ICMR Standard Treatment Workflows by clinical relevance.

GUIDELINES:
- PEDS_ACUTE_ENCEPHALITIS_SYNDROME: suspicion if a CHILD has fever plus unconsciousness, altered sensorium, or seizures.
- ENT_ACUTE_RHINOSINUSITIS: nasal discharge, sinus pain, facial pressure.

WEIGHTING RULES:
1. Neurological symptoms (unconscious, seizures) in children = HIGH priority (weight 0.9-1.0).
2. ENT symptoms = MEDIUM priority (weight 0.3-0.5) unless neurological symptoms are present.
3. Omit a workflow only if it is completely irrelevant.

INTENT:
- "CASE" when the doctor describes a specific patient.
- "SEARCH" when the doctor asks a general guideline question.
- "CLARIFY" for anything else.

Return ONLY JSON:
{"intent": "CASE" | "SEARCH" | "CLARIFY", "rankings": [{"workflow": "WORKFLOW_NAME", "weight": 0.0, "reason": "short clinical justification"}]}`, text)

	raw, err := c.completeJSON(ctx, prompt)
	if err != nil {
		slog.Warn("genai.RankWorkflows: oracle call failed", "error", err)
		return nil, err
	}

	var parsed models.RankingResult
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		slog.Warn("genai.RankWorkflows: malformed oracle output", "error", err)
		return nil, fmt.Errorf("%w: %v", models.ErrOracleFailure, err)
	}

	filtered := parsed.Rankings[:0]
	for _, r := range parsed.Rankings {
		if models.IsValidWorkflow(r.Workflow) {
			filtered = append(filtered, r)
		}
	}
	parsed.Rankings = filtered
	sort.SliceStable(parsed.Rankings, func(i, j int) bool {
		return parsed.Rankings[i].Weight > parsed.Rankings[j].Weight
	})

	switch parsed.Intent {
	case models.IntentCase, models.IntentSearch, models.IntentClarify:
	default:
		parsed.Intent = models.IntentClarify
	}
	slog.Debug("genai.RankWorkflows: ranked candidates", "intent", parsed.Intent, "count", len(parsed.Rankings))
	return &parsed, nil
}

// ExtractFacts extracts schema-shaped clinical facts from free text. Fields
// the model cannot determine come back null; values that cannot be literal
// findings (out-of-range GCS, negative day counts) are dropped to null.
// An unsupported workflow is a caller-side error, never delegated to the oracle.
func (c *Client) ExtractFacts(ctx context.Context, workflow models.Workflow, text string) (models.FactSet, error) {
	empty, err := triage.NewFactSet(workflow)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return empty, nil
	}

	schemaJSON, err := json.Marshal(empty)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}

	prompt := fmt.Sprintf(`You are a medical data extractor for the ICMR STW %s.

TASK: Extract clinical facts from this message: %q

Return ONLY JSON matching this schema exactly, using null for anything the message does not state: %s

RULES:
1. Booleans: set to false when the doctor denies a condition ("not diabetic", "no seizures"); leave null when unmentioned.
2. Emergency synonyms: "comatose", "unconscious", "drowsy", "passed out" mean altered_sensorium true; "diabetes", "DM", "sugar history" mean is_diabetic_immuno true.
3. Numbers: extract integers for day counts and the GCS score.
4. Discharge: map "watery/clear" to "watery" and "thick/pus/yellow" to "purulent".`, workflow, text, schemaJSON)

	raw, err := c.completeJSON(ctx, prompt)
	if err != nil {
		slog.Warn("genai.ExtractFacts: oracle call failed", "error", err, "workflow", workflow)
		return nil, err
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		slog.Warn("genai.ExtractFacts: malformed oracle output", "error", err, "workflow", workflow)
		return nil, fmt.Errorf("%w: %v", models.ErrOracleFailure, err)
	}

	// Keep only schema fields; anything the model invented is discarded.
	extracted := empty.Clone()
	for field := range extracted {
		if v, ok := parsed[field]; ok {
			extracted[field] = v
		}
	}
	return triage.Sanitize(workflow, extracted), nil
}

// GenerateQuestions phrases clinician-facing clarification questions for the
// missing-field descriptors. An empty missing list yields an empty result
// without invoking the oracle.
func (c *Client) GenerateQuestions(ctx context.Context, workflow models.Workflow, missing []string) ([]models.Question, error) {
	if len(missing) == 0 {
		return []models.Question{}, nil
	}

	prompt := fmt.Sprintf(`You are a professional clinical assistant.

TASK: Generate short, clear clarification questions for a doctor, to gather the missing information required by the ICMR STW %s.

Missing information: %s

RULES:
- Ask ONE professional question per missing item.
- Focus on concrete clinical data points (duration in days, GCS score, discharge type).
- Do NOT diagnose or give advice.

Return ONLY JSON: {"questions": [{"field": "the missing item", "question": "the question"}]}`, workflow, strings.Join(missing, "; "))

	raw, err := c.completeJSON(ctx, prompt)
	if err != nil {
		slog.Warn("genai.GenerateQuestions: oracle call failed", "error", err, "workflow", workflow)
		return nil, err
	}

	var parsed struct {
		Questions []models.Question `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		slog.Warn("genai.GenerateQuestions: malformed oracle output", "error", err)
		return nil, fmt.Errorf("%w: %v", models.ErrOracleFailure, err)
	}
	if len(parsed.Questions) == 0 {
		return nil, fmt.Errorf("%w: empty question list", models.ErrOracleFailure)
	}
	return parsed.Questions, nil
}

// Answer responds to a general guideline question using only the retrieved
// passages. It backs the SEARCH intent, where no patient case is in play.
func (c *Client) Answer(ctx context.Context, question string, passages []models.Passage) (string, error) {
	var excerpts strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&excerpts, "[%d] %s\n", i+1, p.Text)
	}
	if excerpts.Len() == 0 {
		return "", fmt.Errorf("%w: no passages to ground on", models.ErrOracleFailure)
	}

	system := "You are a clinical assistant answering a doctor's question about ICMR Standard Treatment Workflows. " +
		"Use ONLY the numbered guideline excerpts provided. Cite excerpt numbers in square brackets. " +
		"If the excerpts do not answer the question, say so plainly."
	user := fmt.Sprintf("Question: %s\n\nGuideline excerpts:\n%s\nAnswer in 3-4 short sentences.",
		question, excerpts.String())

	text, err := c.completeText(ctx, system, user)
	if err != nil {
		slog.Warn("genai.Answer: oracle call failed", "error", err)
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty answer", models.ErrOracleFailure)
	}
	return strings.TrimSpace(text), nil
}

// Explain produces a free-text explanation of the deterministic decision,
// grounded strictly in the retrieved guideline passages.
func (c *Client) Explain(ctx context.Context, workflow models.Workflow, decision models.RuleResult, facts models.FactSet, passages []models.Passage) (string, error) {
	var excerpts strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&excerpts, "[%d] %s\n", i+1, p.Text)
	}
	if excerpts.Len() == 0 {
		return "", fmt.Errorf("%w: no passages to ground on", models.ErrOracleFailure)
	}

	factsJSON, _ := json.Marshal(facts)
	system := "You are a clinical assistant explaining guideline-based decisions to a doctor. " +
		"Use ONLY the numbered guideline excerpts provided. Cite excerpt numbers in square brackets. " +
		"If the excerpts do not support a statement, do not make it. Never invent dosages or criteria."
	user := fmt.Sprintf("STW: %s\nDecision: %s — %s\nPatient facts: %s\n\nGuideline excerpts:\n%s\nExplain the decision in 3-4 short sentences for the treating doctor.",
		workflow, decision.Status, decision.Message, factsJSON, excerpts.String())

	text, err := c.completeText(ctx, system, user)
	if err != nil {
		slog.Warn("genai.Explain: oracle call failed", "error", err, "workflow", workflow)
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty explanation", models.ErrOracleFailure)
	}
	return strings.TrimSpace(text), nil
}
