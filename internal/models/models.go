// Package models defines the core data structures for the clinical triage assistant.
//
// It includes the supported treatment workflows, rule engine outcomes, readiness
// results, and the session types shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// Workflow identifies a supported ICMR Standard Treatment Workflow.
// The set is closed: rule engines and readiness checks switch over it
// exhaustively, so adding a workflow is a compile-time-visible change.
type Workflow string

const (
	// WorkflowENTAcuteRhinosinusitis is the ENT Acute Rhinosinusitis STW (ICD-10 J01.90).
	WorkflowENTAcuteRhinosinusitis Workflow = "ENT_ACUTE_RHINOSINUSITIS"
	// WorkflowPedsAcuteEncephalitis is the Pediatric Acute Encephalitis Syndrome STW.
	WorkflowPedsAcuteEncephalitis Workflow = "PEDS_ACUTE_ENCEPHALITIS_SYNDROME"
)

// SupportedWorkflows returns the closed set of workflows this deployment ships.
func SupportedWorkflows() []Workflow {
	return []Workflow{WorkflowENTAcuteRhinosinusitis, WorkflowPedsAcuteEncephalitis}
}

// IsValidWorkflow checks whether the given workflow is supported.
func IsValidWorkflow(w Workflow) bool {
	switch w {
	case WorkflowENTAcuteRhinosinusitis, WorkflowPedsAcuteEncephalitis:
		return true
	default:
		return false
	}
}

// DisplayName returns the clinician-facing name of the workflow.
func (w Workflow) DisplayName() string {
	switch w {
	case WorkflowENTAcuteRhinosinusitis:
		return "ENT Acute Rhinosinusitis"
	case WorkflowPedsAcuteEncephalitis:
		return "PEDS Acute Encephalitis Syndrome"
	default:
		return strings.ReplaceAll(string(w), "_", " ")
	}
}

// RuleStatus is the enumerated outcome tag of a rule engine decision.
type RuleStatus string

// ENT Acute Rhinosinusitis outcomes.
const (
	RuleStatusUrgentReferral RuleStatus = "URGENT_REFERRAL"
	RuleStatusViralURI       RuleStatus = "VIRAL_URI"
	RuleStatusBacterialARS   RuleStatus = "BACTERIAL_ARS"
	RuleStatusAwaitingData   RuleStatus = "AWAITING_DATA"
)

// Pediatric Acute Encephalitis Syndrome outcomes.
const (
	RuleStatusUrgentTertiaryReferral RuleStatus = "URGENT_TERTIARY_REFERRAL"
	RuleStatusAdmitAndTreat          RuleStatus = "ADMIT_AND_TREAT"
	RuleStatusAdmitAndExamine        RuleStatus = "ADMIT_AND_EXAMINE"
	RuleStatusWardManagement         RuleStatus = "WARD_MANAGEMENT"
	RuleStatusNotMet                 RuleStatus = "NOT_MET"
)

// RuleResult is the deterministic decision produced by a rule engine.
type RuleResult struct {
	Status   RuleStatus `json:"status"`
	Message  string     `json:"message"`
	Plan     []string   `json:"plan,omitempty"`
	Required []string   `json:"required,omitempty"` // still-needed field names when Status is AWAITING_DATA
}

// ReadinessResult reports whether a fact set carries enough information to run
// the rule engine, or whether an emergency is already evident.
// IsEmergency=true implies Ready=true and an empty MissingInformation list.
type ReadinessResult struct {
	Ready              bool     `json:"ready"`
	IsEmergency        bool     `json:"is_emergency"`
	MissingInformation []string `json:"missing_information"`
}

// Intent classifies an inbound message at the start of a conversation.
type Intent string

const (
	// IntentCase describes a specific patient scenario to triage.
	IntentCase Intent = "CASE"
	// IntentSearch is a free-text guideline question answered via retrieval.
	IntentSearch Intent = "SEARCH"
	// IntentClarify marks messages that are neither a case nor a searchable question.
	IntentClarify Intent = "CLARIFY"
)

// Ranking is one weighted workflow candidate produced by the ranking oracle.
type Ranking struct {
	Workflow Workflow `json:"workflow"`
	Weight   float64  `json:"weight"` // clinical relevance in [0,1], higher = more likely
	Reason   string   `json:"reason"`
}

// RankingResult is the full output of the workflow ranking oracle, already
// filtered to supported workflows and sorted by descending weight.
type RankingResult struct {
	Intent   Intent    `json:"intent"`
	Rankings []Ranking `json:"rankings"`
}

// Question pairs a missing-field descriptor with its clinician-facing question.
type Question struct {
	Field    string `json:"field"`
	Question string `json:"question"`
}

// Passage is one retrieved guideline excerpt used to ground explanations.
type Passage struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
	Source string  `json:"source,omitempty"` // PDF page/section reference
}

// IncomingMessage is a channel-normalized inbound message.
type IncomingMessage struct {
	Channel   string `json:"channel"`
	SenderID  string `json:"sender_id"`
	MessageID string `json:"message_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Body      string `json:"body"`
}

// AuditRecord is one append-only clinical audit entry, written for every
// finalized turn and never read back by the core.
type AuditRecord struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	SenderID       string    `json:"sender_id"`
	RawQuery       string    `json:"raw_query"`
	DetectedIntent string    `json:"detected_intent"`
	PatientContext FactSet   `json:"patient_context,omitempty"`
	CitedSources   []string  `json:"cited_sources,omitempty"`
	ResponseText   string    `json:"response_text"`
}

// API response types for consistent JSON responses.

// APIStatus enumerates API response statuses.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard envelope for JSON API responses.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// Error variables for better error handling and testability
var (
	ErrUnsupportedWorkflow = errors.New("unsupported workflow")
	ErrEmptyRecipient      = errors.New("recipient cannot be empty")
	ErrEmptyMessageBody    = errors.New("message body cannot be empty")
	ErrOracleFailure       = errors.New("oracle returned no usable output")
)
