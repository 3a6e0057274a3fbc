// Package conversation orchestrates the WhatsApp triage dialogue: intent
// classification, workflow selection, the fact-extraction/readiness/
// clarification loop, and final rule-engine guidance.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/audit"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/rag"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/store"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/triage"
)

// MaxClarificationAttempts is the hard ceiling on clarification rounds per
// session. Exceeding it clears the session unconditionally.
const MaxClarificationAttempts = 3

// DefaultRetrievalTopK is the number of guideline passages fetched per
// explanation or search query.
const DefaultRetrievalTopK = 5

const welcomeMessage = "👋 Welcome to the ICMR STW Clinical Assistant.\n\n" +
	"Describe a patient's symptoms or clinical signs to begin a guideline-based assessment, " +
	"or ask a question about the covered workflows (ENT Acute Rhinosinusitis, PEDS Acute Encephalitis Syndrome)."

const throttleMessage = "⏳ *Rate Limit Active*\n\n" +
	"To ensure clinical accuracy, I process messages one at a time. " +
	"Please wait 60 seconds before sending your next query."

// evidenceUnavailableText substitutes for a failed explanation oracle. The
// deterministic decision is still delivered; only the narrative is replaced.
const evidenceUnavailableText = "Guideline evidence lookup is temporarily unavailable. " +
	"The decision above follows the deterministic ICMR STW criteria for this workflow."

const searchUnavailableText = "I could not retrieve guideline evidence for this question right now. " +
	"Please try again shortly, or describe a specific patient case instead."

// resetKeywords clear session state before any other turn logic runs.
var resetKeywords = map[string]struct{}{
	"hi":       {},
	"hello":    {},
	"restart":  {},
	"reset":    {},
	"new case": {},
}

// Oracle is the LLM-backed boundary the engine consumes. All methods are
// best-effort: the engine tolerates any of them failing.
type Oracle interface {
	RankWorkflows(ctx context.Context, text string) (*models.RankingResult, error)
	ExtractFacts(ctx context.Context, workflow models.Workflow, text string) (models.FactSet, error)
	GenerateQuestions(ctx context.Context, workflow models.Workflow, missing []string) ([]models.Question, error)
	Explain(ctx context.Context, workflow models.Workflow, decision models.RuleResult, facts models.FactSet, passages []models.Passage) (string, error)
	Answer(ctx context.Context, question string, passages []models.Passage) (string, error)
}

// Sender delivers outbound messages to a recipient.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts holds engine configuration.
type Opts struct {
	SessionTTL time.Duration
	TopK       int
	Limiter    *RateLimiter
	Recorder   audit.Recorder
}

// Option configures the engine.
type Option func(*Opts)

// WithSessionTTL overrides the session expiry.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.SessionTTL = ttl }
}

// WithRetrievalTopK overrides how many passages are retrieved per query.
func WithRetrievalTopK(k int) Option {
	return func(o *Opts) { o.TopK = k }
}

// WithRateLimiter attaches a per-sender rate limiter.
func WithRateLimiter(l *RateLimiter) Option {
	return func(o *Opts) { o.Limiter = l }
}

// WithAuditRecorder attaches a clinical audit sink.
func WithAuditRecorder(r audit.Recorder) Option {
	return func(o *Opts) { o.Recorder = r }
}

// Engine drives the per-turn state machine. Turns for the same sender are
// serialized through an internal dispatcher; different senders proceed in
// parallel.
type Engine struct {
	sessions   store.SessionStore
	oracle     Oracle
	retriever  rag.Retriever
	sender     Sender
	recorder   audit.Recorder
	limiter    *RateLimiter
	dispatcher *Dispatcher
	sessionTTL time.Duration
	topK       int
}

// NewEngine creates an engine around the given dependencies.
func NewEngine(sessions store.SessionStore, oracle Oracle, retriever rag.Retriever, sender Sender, opts ...Option) *Engine {
	cfg := Opts{
		SessionTTL: store.DefaultSessionTTL,
		TopK:       DefaultRetrievalTopK,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if retriever == nil {
		retriever = rag.NoopRetriever{}
	}
	return &Engine{
		sessions:   sessions,
		oracle:     oracle,
		retriever:  retriever,
		sender:     sender,
		recorder:   cfg.Recorder,
		limiter:    cfg.Limiter,
		dispatcher: NewDispatcher(),
		sessionTTL: cfg.SessionTTL,
		topK:       cfg.TopK,
	}
}

// Run consumes inbound messages until the channel closes or the context is
// cancelled, dispatching each onto its sender's serial queue.
func (e *Engine) Run(ctx context.Context, messages <-chan models.IncomingMessage) {
	slog.Info("Engine.Run: consuming inbound messages")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Engine.Run: context cancelled")
			return
		case msg, ok := <-messages:
			if !ok {
				slog.Info("Engine.Run: inbound channel closed")
				return
			}
			e.HandleMessage(ctx, msg)
		}
	}
}

// HandleMessage schedules one turn on the sender's serial queue and returns
// immediately.
func (e *Engine) HandleMessage(ctx context.Context, msg models.IncomingMessage) {
	if msg.SenderID == "" || strings.TrimSpace(msg.Body) == "" {
		slog.Debug("Engine.HandleMessage: ignoring empty message", "sender", msg.SenderID)
		return
	}
	if !e.dispatcher.Enqueue(msg.SenderID, func() {
		e.processTurn(ctx, msg.SenderID, msg.Body)
	}) {
		slog.Warn("Engine.HandleMessage: turn rejected", "sender", msg.SenderID)
	}
}

// Stop drains the dispatcher, waiting for in-flight turns.
func (e *Engine) Stop() {
	e.dispatcher.Stop()
}

// processTurn runs one full state transition for a sender. A panic anywhere
// below is caught so one malformed turn cannot take down the worker; the
// clinician gets a generic technical-issue message rather than silence.
func (e *Engine) processTurn(ctx context.Context, senderID, text string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Engine.processTurn: panic recovered", "sender", senderID, "panic", r)
			e.send(ctx, senderID, fallbackMessage(fallbackRuleEngineError))
		}
	}()

	if e.limiter != nil && !e.limiter.Allow(senderID) {
		if e.limiter.ShouldNotify(senderID) {
			e.send(ctx, senderID, throttleMessage)
		}
		slog.Warn("Engine.processTurn: sender throttled", "sender", senderID)
		return
	}

	if _, ok := resetKeywords[strings.ToLower(strings.TrimSpace(text))]; ok {
		if err := e.sessions.Clear(ctx, senderID); err != nil {
			slog.Warn("Engine.processTurn: failed to clear session on reset", "error", err, "sender", senderID)
		}
		e.send(ctx, senderID, welcomeMessage)
		return
	}

	session, err := e.sessions.Get(ctx, senderID)
	if err != nil {
		slog.Error("Engine.processTurn: session load failed, treating as new conversation", "error", err, "sender", senderID)
		session = nil
	}
	if session != nil {
		if err := session.Validate(); err != nil {
			slog.Error("Engine.processTurn: invalid session state, clearing", "error", err, "stage", session.Stage, "sender", senderID)
			_ = e.sessions.Clear(ctx, senderID)
			e.send(ctx, senderID, welcomeMessage)
			return
		}
	}

	switch {
	case session == nil:
		e.handleNewConversation(ctx, senderID, text)
	case session.Stage == models.StageAwaitingWorkflowSelection:
		e.handleWorkflowSelection(ctx, senderID, text, session)
	default:
		e.handleClarification(ctx, senderID, text, session)
	}
}

// handleNewConversation runs intent classification and workflow ranking for
// a sender with no active session.
func (e *Engine) handleNewConversation(ctx context.Context, senderID, text string) {
	ranking, err := e.oracle.RankWorkflows(ctx, text)
	if err != nil {
		slog.Warn("Engine.handleNewConversation: ranking oracle failed", "error", err, "sender", senderID)
		e.send(ctx, senderID, fallbackMessage(fallbackUnclearReply))
		return
	}

	if ranking.Intent == models.IntentClarify {
		e.send(ctx, senderID, fallbackMessage(fallbackOutOfScope))
		return
	}
	if len(ranking.Rankings) == 0 {
		e.send(ctx, senderID, fallbackMessage(fallbackNoMatch))
		return
	}

	if ranking.Intent == models.IntentSearch {
		e.handleSearch(ctx, senderID, text)
		return
	}

	// CASE intent: disambiguate when several workflows are plausible.
	if len(ranking.Rankings) > 1 {
		session := models.NewSelectionSession(ranking.Rankings, text)
		if err := e.sessions.Set(ctx, senderID, session, e.sessionTTL); err != nil {
			slog.Error("Engine.handleNewConversation: failed to persist selection session", "error", err, "sender", senderID)
			e.send(ctx, senderID, fallbackMessage(fallbackRuleEngineError))
			return
		}
		e.send(ctx, senderID, renderMenu(ranking.Rankings))
		return
	}

	e.beginExtraction(ctx, senderID, ranking.Rankings[0].Workflow, text)
}

// handleSearch answers a general guideline question from retrieved passages.
// No session state is created.
func (e *Engine) handleSearch(ctx context.Context, senderID, text string) {
	passages := e.retriever.Retrieve(ctx, text, e.topK)
	answer, err := e.oracle.Answer(ctx, text, passages)
	if err != nil {
		slog.Warn("Engine.handleSearch: answer oracle failed", "error", err, "sender", senderID)
		e.send(ctx, senderID, searchUnavailableText)
		return
	}
	e.send(ctx, senderID, answer)
	e.record(models.AuditRecord{
		SenderID:       senderID,
		RawQuery:       text,
		DetectedIntent: string(models.IntentSearch),
		CitedSources:   passageSources(passages),
		ResponseText:   answer,
	})
}

// handleWorkflowSelection parses the clinician's numeric menu choice. Invalid
// input re-prompts without advancing or clearing the session.
func (e *Engine) handleWorkflowSelection(ctx context.Context, senderID, text string, session *models.Session) {
	choice, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		e.send(ctx, senderID, "❌ Please reply with a number (e.g., '1') to choose the guideline.")
		return
	}
	if choice < 1 || choice > len(session.Rankings) {
		e.send(ctx, senderID, "❌ Invalid selection. Please reply with one of the numbers listed above.")
		return
	}

	// Facts come from the original case description, not the digit itself.
	selected := session.Rankings[choice-1].Workflow
	slog.Info("Engine.handleWorkflowSelection: workflow fixed", "sender", senderID, "workflow", selected)
	e.beginExtraction(ctx, senderID, selected, session.OriginalText)
}

// beginExtraction runs the first fact extraction for a fixed workflow and
// either finalizes immediately or opens the clarification loop.
func (e *Engine) beginExtraction(ctx context.Context, senderID string, workflow models.Workflow, text string) {
	facts, err := e.oracle.ExtractFacts(ctx, workflow, text)
	if err != nil {
		// A failed extraction is an all-null one: the readiness check below
		// turns it into clarifying questions for every schema field.
		slog.Warn("Engine.beginExtraction: extraction oracle failed, using empty fact set", "error", err, "sender", senderID)
		facts, err = triage.NewFactSet(workflow)
		if err != nil {
			slog.Error("Engine.beginExtraction: no schema for workflow", "error", err, "workflow", workflow)
			e.send(ctx, senderID, fallbackMessage(fallbackRuleEngineError))
			return
		}
	}

	readiness, err := triage.CheckReadiness(workflow, facts)
	if err != nil {
		slog.Error("Engine.beginExtraction: readiness check failed", "error", err, "workflow", workflow)
		e.send(ctx, senderID, fallbackMessage(fallbackRuleEngineError))
		return
	}

	if readiness.Ready {
		e.finalize(ctx, senderID, workflow, facts, text)
		return
	}

	session := models.NewClarificationSession(workflow, facts)
	if err := e.sessions.Set(ctx, senderID, session, e.sessionTTL); err != nil {
		slog.Error("Engine.beginExtraction: failed to persist clarification session", "error", err, "sender", senderID)
		e.send(ctx, senderID, fallbackMessage(fallbackRuleEngineError))
		return
	}
	e.askQuestions(ctx, senderID, workflow, readiness.MissingInformation)
}

// handleClarification merges one clarification reply into the session facts,
// enforcing the attempt ceiling before any extraction work.
func (e *Engine) handleClarification(ctx context.Context, senderID, text string, session *models.Session) {
	session.ClarificationAttempts++
	if session.ClarificationAttempts > MaxClarificationAttempts {
		slog.Info("Engine.handleClarification: attempt ceiling exceeded, clearing session", "sender", senderID)
		e.send(ctx, senderID, fallbackMessage(fallbackUnclearReply))
		if err := e.sessions.Clear(ctx, senderID); err != nil {
			slog.Error("Engine.handleClarification: failed to clear session", "error", err, "sender", senderID)
		}
		return
	}

	extracted, err := e.oracle.ExtractFacts(ctx, session.Workflow, text)
	if err != nil {
		// Treated as an uninformative reply: the attempt still counts, the
		// merge is a no-op, and the same questions are asked again.
		slog.Warn("Engine.handleClarification: extraction oracle failed, treating reply as uninformative", "error", err, "sender", senderID)
		extracted = nil
	}

	session.ClinicalFacts = triage.Merge(session.Workflow, session.ClinicalFacts, extracted)

	readiness, err := triage.CheckReadiness(session.Workflow, session.ClinicalFacts)
	if err != nil {
		slog.Error("Engine.handleClarification: readiness check failed", "error", err, "workflow", session.Workflow)
		e.send(ctx, senderID, fallbackMessage(fallbackRuleEngineError))
		return
	}

	if readiness.Ready {
		e.finalize(ctx, senderID, session.Workflow, session.ClinicalFacts, text)
		return
	}

	session.Touch()
	if err := e.sessions.Set(ctx, senderID, session, e.sessionTTL); err != nil {
		slog.Error("Engine.handleClarification: failed to persist session", "error", err, "sender", senderID)
		e.send(ctx, senderID, fallbackMessage(fallbackRuleEngineError))
		return
	}
	e.askQuestions(ctx, senderID, session.Workflow, readiness.MissingInformation)
}

// finalize applies the deterministic rules, grounds the decision in retrieved
// guideline passages, delivers the combined message, and clears the session.
func (e *Engine) finalize(ctx context.Context, senderID string, workflow models.Workflow, facts models.FactSet, rawText string) {
	result, err := triage.ApplyRules(workflow, facts)
	if err != nil {
		slog.Error("Engine.finalize: rule engine failed", "error", err, "workflow", workflow)
		e.send(ctx, senderID, fallbackMessage(fallbackRuleEngineError))
		_ = e.sessions.Clear(ctx, senderID)
		return
	}

	query := fmt.Sprintf("%s %s", workflow.DisplayName(), result.Message)
	passages := e.retriever.Retrieve(ctx, query, e.topK)

	explanation, err := e.oracle.Explain(ctx, workflow, result, facts, passages)
	if err != nil {
		slog.Warn("Engine.finalize: explanation oracle failed, using substitute", "error", err, "workflow", workflow)
		explanation = evidenceUnavailableText
	}

	final := composeDecision(result, explanation)
	e.send(ctx, senderID, final)
	e.record(models.AuditRecord{
		SenderID:       senderID,
		RawQuery:       rawText,
		DetectedIntent: string(models.IntentCase),
		PatientContext: facts.Clone(),
		CitedSources:   passageSources(passages),
		ResponseText:   final,
	})

	if err := e.sessions.Clear(ctx, senderID); err != nil {
		slog.Error("Engine.finalize: failed to clear session", "error", err, "sender", senderID)
	}
}

// askQuestions phrases clarification questions for the missing descriptors,
// falling back to the deterministic catalog when the oracle yields nothing.
func (e *Engine) askQuestions(ctx context.Context, senderID string, workflow models.Workflow, missing []string) {
	questions, err := e.oracle.GenerateQuestions(ctx, workflow, missing)
	if err != nil || len(questions) == 0 {
		if err != nil {
			slog.Warn("Engine.askQuestions: question oracle failed, using deterministic fallback", "error", err, "workflow", workflow)
		}
		questions = deterministicQuestions(missing)
	}
	e.send(ctx, senderID, renderQuestions(questions))
}

func (e *Engine) send(ctx context.Context, senderID, body string) {
	if err := e.sender.SendMessage(ctx, senderID, body); err != nil {
		slog.Error("Engine.send: outbound delivery failed", "error", err, "sender", senderID)
	}
}

func (e *Engine) record(rec models.AuditRecord) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(rec); err != nil {
		slog.Error("Engine.record: audit write failed", "error", err, "sender", rec.SenderID)
	}
}

// renderMenu formats the ranked candidate workflows as a numbered WhatsApp menu.
func renderMenu(rankings []models.Ranking) string {
	var b strings.Builder
	b.WriteString("🔍 *Potential ICMR Guidelines Detected:*\n\n")
	for i, r := range rankings {
		fmt.Fprintf(&b, "%d. *%s* (%d%%)\n_%s_\n\n", i+1, r.Workflow.DisplayName(), int(r.Weight*100), r.Reason)
	}
	fmt.Fprintf(&b, "👉 *Reply with the number (1-%d) to select the primary workflow.*", len(rankings))
	return b.String()
}

func renderQuestions(questions []models.Question) string {
	lines := make([]string, 0, len(questions))
	for _, q := range questions {
		lines = append(lines, q.Question)
	}
	return strings.Join(lines, "\n")
}

// composeDecision joins status, management plan and evidence into one message.
func composeDecision(result models.RuleResult, explanation string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\n", result.Message)
	if len(result.Plan) > 0 {
		b.WriteString("*MANAGEMENT PLAN:*\n")
		for _, p := range result.Plan {
			fmt.Fprintf(&b, "• %s\n", p)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "*EVIDENCE:*\n%s", explanation)
	return strings.TrimSpace(b.String())
}

func passageSources(passages []models.Passage) []string {
	var sources []string
	seen := make(map[string]struct{})
	for _, p := range passages {
		if p.Source == "" {
			continue
		}
		if _, ok := seen[p.Source]; ok {
			continue
		}
		seen[p.Source] = struct{}{}
		sources = append(sources, p.Source)
	}
	return sources
}
