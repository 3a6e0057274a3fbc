// Package triage implements the deterministic core of the clinical assistant:
// the per-workflow fact schemas, the fact accumulator, the readiness evaluator,
// and the rule engines for the two supported ICMR Standard Treatment Workflows.
//
// Everything in this package is pure: no I/O, no randomness, no mutation of
// inputs. The conversational orchestrator drives it turn by turn.
package triage

import (
	"fmt"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

// ENT Acute Rhinosinusitis schema fields.
const (
	FieldDurationDays         = "duration_days"
	FieldNasalDischargeType   = "nasal_discharge_type"
	FieldIsDiabeticImmuno     = "is_diabetic_immuno"
	FieldRedFlagsPresent      = "red_flags_present"
	FieldAntibioticFailure10d = "antibiotic_failure_10_days"
)

// Pediatric Acute Encephalitis Syndrome schema fields.
const (
	FieldFeverDays           = "fever_days"
	FieldAlteredSensorium    = "altered_sensorium"
	FieldSeizuresPresent     = "seizures_present"
	FieldGCSScore            = "gcs_score"
	FieldShockPresent        = "shock_present"
	FieldAbnormalPosturing   = "abnormal_posturing"
	FieldRespiratoryDistress = "respiratory_distress"
	FieldRefractorySeizures  = "refractory_seizures"
)

// Glasgow Coma Scale bounds. Extracted values outside this range are
// extraction errors and are treated as unknown, never as a literal score.
const (
	GCSMin = 3
	GCSMax = 15
)

// schemas lists the ordered field set per workflow. Every field defaults to
// null (unknown), which is distinct from any negative clinical finding.
var schemas = map[models.Workflow][]string{
	models.WorkflowENTAcuteRhinosinusitis: {
		FieldDurationDays,
		FieldNasalDischargeType,
		FieldIsDiabeticImmuno,
		FieldRedFlagsPresent,
		FieldAntibioticFailure10d,
	},
	models.WorkflowPedsAcuteEncephalitis: {
		FieldFeverDays,
		FieldAlteredSensorium,
		FieldSeizuresPresent,
		FieldGCSScore,
		FieldShockPresent,
		FieldAbnormalPosturing,
		FieldRespiratoryDistress,
		FieldRefractorySeizures,
	},
}

// SchemaFields returns the ordered field names of the workflow's schema.
func SchemaFields(workflow models.Workflow) ([]string, error) {
	fields, ok := schemas[workflow]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedWorkflow, workflow)
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out, nil
}

// NewFactSet seeds an empty fact set for the workflow with every schema field
// explicitly unknown.
func NewFactSet(workflow models.Workflow) (models.FactSet, error) {
	fields, ok := schemas[workflow]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedWorkflow, workflow)
	}
	facts := make(models.FactSet, len(fields))
	for _, f := range fields {
		facts[f] = nil
	}
	return facts, nil
}

// IsSchemaField reports whether the field belongs to the workflow's schema.
func IsSchemaField(workflow models.Workflow, field string) bool {
	for _, f := range schemas[workflow] {
		if f == field {
			return true
		}
	}
	return false
}
