package conversation

import (
	"fmt"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/triage"
)

// Fallback reasons. Every reason maps to a fixed clinician-facing message so
// an oracle failure never leaks raw errors into the chat.
const (
	fallbackNoMatch         = "no_stw_match"
	fallbackUnclearReply    = "unclear_reply"
	fallbackRuleEngineError = "rule_engine_error"
	fallbackOutOfScope      = "out_of_scope"
)

var fallbackMessages = map[string]string{
	fallbackNoMatch: "I am unable to match these symptoms to our current ICMR Standard Treatment Workflows " +
		"(ENT Acute Rhinosinusitis or PEDS Acute Encephalitis Syndrome). " +
		"Please provide more specific clinical details to help me identify the correct guideline.",

	fallbackUnclearReply: "I could not clearly understand your last message. " +
		"To proceed safely, please rephrase or provide specific clinical markers (e.g., duration, GCS score, or discharge type).",

	fallbackRuleEngineError: "A technical error occurred while applying the deterministic clinical rules. " +
		"Please verify the inputs or restart the clinical assessment.",

	fallbackOutOfScope: "Hi, I am designed to assist specifically with clinical queries based on ICMR STWs. " +
		"Please describe a patient's symptoms or clinical signs to begin the management plan.",
}

// fallbackMessage returns the fixed message for a reason, or a generic
// safe-stop message for unknown reasons.
func fallbackMessage(reason string) string {
	if msg, ok := fallbackMessages[reason]; ok {
		return msg
	}
	return "I'm unable to proceed safely with the available information. Please restart the query with more clinical details."
}

// fallbackQuestions maps readiness descriptors to deterministic question
// phrasings, used whenever the clarification oracle returns nothing usable.
var fallbackQuestions = map[string]string{
	triage.MissingSymptomDuration: "How many days have the symptoms been present?",
	triage.MissingDischargeType:   "Is the nasal discharge watery or thick/purulent?",
	triage.MissingFeverDuration:   "How many days has the fever been present?",
	triage.MissingNeuroStatus:     "Please clarify if there is altered sensorium or new-onset seizures.",
}

// deterministicQuestions phrases one question per missing descriptor without
// any oracle involvement.
func deterministicQuestions(missing []string) []models.Question {
	questions := make([]models.Question, 0, len(missing))
	for _, m := range missing {
		q, ok := fallbackQuestions[m]
		if !ok {
			q = fmt.Sprintf("Please provide details regarding: %s.", m)
		}
		questions = append(questions, models.Question{Field: m, Question: q})
	}
	return questions
}
