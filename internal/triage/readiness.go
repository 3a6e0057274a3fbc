package triage

import (
	"fmt"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

// Clinician-facing descriptors for missing information. These are what the
// clarification generator phrases questions for; internal field names never
// reach the chat.
const (
	MissingSymptomDuration = "symptom duration (days)"
	MissingDischargeType   = "type of nasal discharge"
	MissingFeverDuration   = "duration of fever"
	MissingNeuroStatus     = "neurological status (seizures/sensorium)"
)

// CheckReadiness decides whether the fact set carries enough information to
// run the rule engine, or whether an already-evident emergency should skip
// clarification entirely. The emergency bypass runs before the completeness
// check on every call: a critical finding merged mid-conversation must
// short-circuit further questioning immediately.
//
// The check is pure and idempotent; the input is never mutated.
func CheckReadiness(workflow models.Workflow, facts models.FactSet) (models.ReadinessResult, error) {
	switch workflow {
	case models.WorkflowENTAcuteRhinosinusitis:
		return checkENTReadiness(facts), nil
	case models.WorkflowPedsAcuteEncephalitis:
		return checkPedsReadiness(facts), nil
	default:
		return models.ReadinessResult{}, fmt.Errorf("%w: no readiness check for %q", models.ErrUnsupportedWorkflow, workflow)
	}
}

func checkENTReadiness(facts models.FactSet) models.ReadinessResult {
	// Known red flags and diabetic/immunocompromised status are inherently
	// sufficient to justify referral; no further data is needed.
	if facts.IsTrue(FieldIsDiabeticImmuno) || facts.IsTrue(FieldRedFlagsPresent) {
		return models.ReadinessResult{Ready: true, IsEmergency: true, MissingInformation: []string{}}
	}

	var missing []string
	if !facts.Known(FieldDurationDays) {
		missing = append(missing, MissingSymptomDuration)
	}
	if !facts.Known(FieldNasalDischargeType) {
		missing = append(missing, MissingDischargeType)
	}
	return models.ReadinessResult{
		Ready:              len(missing) == 0,
		IsEmergency:        false,
		MissingInformation: notNil(missing),
	}
}

func checkPedsReadiness(facts models.FactSet) models.ReadinessResult {
	gcs, gcsKnown := facts.Int(FieldGCSScore)
	emergency := facts.IsTrue(FieldAlteredSensorium) ||
		facts.IsTrue(FieldShockPresent) ||
		facts.IsTrue(FieldAbnormalPosturing) ||
		facts.IsTrue(FieldRespiratoryDistress) ||
		facts.IsTrue(FieldRefractorySeizures) ||
		(gcsKnown && gcs < 8)

	if emergency {
		return models.ReadinessResult{Ready: true, IsEmergency: true, MissingInformation: []string{}}
	}

	var missing []string
	if !facts.Known(FieldFeverDays) {
		missing = append(missing, MissingFeverDuration)
	}
	if !facts.Known(FieldAlteredSensorium) && !facts.Known(FieldSeizuresPresent) {
		missing = append(missing, MissingNeuroStatus)
	}
	return models.ReadinessResult{
		Ready:              len(missing) == 0,
		IsEmergency:        false,
		MissingInformation: notNil(missing),
	}
}

// notNil keeps MissingInformation serializing as [] rather than null.
func notNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
