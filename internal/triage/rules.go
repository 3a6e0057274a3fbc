package triage

import (
	"fmt"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

// ApplyRules routes the fact set to the workflow's deterministic rule engine.
// It is pure: identical inputs produce identical output, with no I/O anywhere
// on the path.
func ApplyRules(workflow models.Workflow, facts models.FactSet) (models.RuleResult, error) {
	switch workflow {
	case models.WorkflowENTAcuteRhinosinusitis:
		return applyENTRules(facts), nil
	case models.WorkflowPedsAcuteEncephalitis:
		return applyPedsAESRules(facts), nil
	default:
		return models.RuleResult{}, fmt.Errorf("%w: no rule engine for %q", models.ErrUnsupportedWorkflow, workflow)
	}
}
