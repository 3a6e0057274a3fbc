// Package models defines conversation session state for the triage assistant.
package models

import (
	"errors"
	"time"
)

// Stage is a conversation state-machine node. Terminal turns carry no session
// at all: a session only exists while the assistant is waiting on the clinician.
type Stage string

const (
	// StageAwaitingWorkflowSelection waits for a numeric choice from a ranked menu.
	StageAwaitingWorkflowSelection Stage = "AWAITING_WORKFLOW_SELECTION"
	// StageAwaitingClarification waits for additional clinical detail.
	StageAwaitingClarification Stage = "AWAITING_CLARIFICATION"
)

// Stage-validity errors.
var (
	ErrUnknownStage        = errors.New("unknown session stage")
	ErrMissingRankings     = errors.New("selection stage requires ranked candidates")
	ErrMissingOriginalText = errors.New("selection stage requires the original message text")
	ErrMissingWorkflow     = errors.New("clarification stage requires a fixed workflow")
	ErrMissingFacts        = errors.New("clarification stage requires a clinical fact set")
)

// Session is the per-sender conversation state persisted between turns.
// Each stage requires a specific subset of fields; Validate enforces it so a
// half-written session is caught before it is acted on.
type Session struct {
	Stage                 Stage     `json:"stage"`
	Workflow              Workflow  `json:"workflow,omitempty"`
	ClinicalFacts         FactSet   `json:"clinical_facts,omitempty"`
	ClarificationAttempts int       `json:"clarification_attempts,omitempty"`
	Rankings              []Ranking `json:"rankings,omitempty"`
	OriginalText          string    `json:"original_text,omitempty"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// NewSelectionSession creates a session waiting for the clinician to pick a
// workflow from the ranked menu. The original message text is kept because the
// numeric reply itself carries no clinical content.
func NewSelectionSession(rankings []Ranking, originalText string) *Session {
	return &Session{
		Stage:        StageAwaitingWorkflowSelection,
		Rankings:     rankings,
		OriginalText: originalText,
		UpdatedAt:    time.Now().UTC(),
	}
}

// NewClarificationSession creates a session with a fixed workflow that is
// waiting for more clinical detail.
func NewClarificationSession(workflow Workflow, facts FactSet) *Session {
	return &Session{
		Stage:         StageAwaitingClarification,
		Workflow:      workflow,
		ClinicalFacts: facts,
		UpdatedAt:     time.Now().UTC(),
	}
}

// Validate checks that the session carries the fields its stage requires.
func (s *Session) Validate() error {
	switch s.Stage {
	case StageAwaitingWorkflowSelection:
		if len(s.Rankings) == 0 {
			return ErrMissingRankings
		}
		if s.OriginalText == "" {
			return ErrMissingOriginalText
		}
		return nil
	case StageAwaitingClarification:
		if !IsValidWorkflow(s.Workflow) {
			return ErrMissingWorkflow
		}
		if s.ClinicalFacts == nil {
			return ErrMissingFacts
		}
		return nil
	default:
		return ErrUnknownStage
	}
}

// Touch refreshes the session's last-update timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}
