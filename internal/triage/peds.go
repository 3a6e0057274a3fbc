package triage

import "github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"

// applyPedsAESRules is the deterministic rule engine for Pediatric Acute
// Encephalitis Syndrome. Priority: life-threatening severity first, then the
// clinical suspicion check that mandates admission.
//
// An unknown GCS is treated as the safe default (as if >= 8): the engine never
// mistakes "unknown" for "critical". Only explicit critical findings or an
// explicitly low score reach the referral branch.
func applyPedsAESRules(facts models.FactSet) models.RuleResult {
	gcs, gcsKnown := facts.Int(FieldGCSScore)

	critical := (gcsKnown && gcs < 8) ||
		facts.IsTrue(FieldShockPresent) ||
		facts.IsTrue(FieldAbnormalPosturing) ||
		facts.IsTrue(FieldRespiratoryDistress) ||
		facts.IsTrue(FieldRefractorySeizures)

	if critical {
		return models.RuleResult{
			Status:  models.RuleStatusUrgentTertiaryReferral,
			Message: "🚨 CRITICAL: URGENT TERTIARY REFERRAL REQUIRED.",
			Plan: []string{
				"Establish and maintain airway; intubate immediately if GCS < 8.",
				"Provide oxygen, secure IV access, and start fluids; treat shock.",
				"Start empirical Ceftriaxone (100mg/kg/day) and Acyclovir before transfer.",
				"Immediate transfer to tertiary care/PICU center.",
			},
		}
	}

	// Suspect AES if fever is documented together with any neurological sign:
	// altered sensorium, seizures, or a GCS below 15.
	feverKnown := facts.Known(FieldFeverDays)
	neuroSign := facts.IsTrue(FieldAlteredSensorium) ||
		facts.IsTrue(FieldSeizuresPresent) ||
		(gcsKnown && gcs < 15)

	if feverKnown && neuroSign {
		if !gcsKnown {
			// Admission is mandatory, but the neurological exam comes before a
			// stable-case ward plan can be issued.
			return models.RuleResult{
				Status:  models.RuleStatusAdmitAndExamine,
				Message: "✅ HOSPITAL ADMISSION MANDATORY. Neurological examination required.",
				Plan: []string{
					"Admit immediately; do not wait for further history.",
					"Assess and record the Glasgow Coma Scale score now.",
					"Perform CBC, LFT, KFT, blood sugar, and CSF examination.",
					"Reassess severity once the GCS score is documented.",
				},
				Required: []string{FieldGCSScore},
			}
		}
		if gcs < 15 {
			return models.RuleResult{
				Status:  models.RuleStatusAdmitAndTreat,
				Message: "✅ HOSPITAL ADMISSION MANDATORY.",
				Plan: []string{
					"Admit to ward/ICU as per severity.",
					"Perform CBC, LFT, KFT, blood sugar, and CSF examination.",
					"Start Ceftriaxone (100mg/kg/day) and Acyclovir.",
					"Maintain euglycemia and hydration; control fever.",
				},
			}
		}
		return models.RuleResult{
			Status:  models.RuleStatusWardManagement,
			Message: "✅ Ward management with close monitoring.",
			Plan: []string{
				"Supportive care: hydration, antipyretics, and nutrition.",
				"Seizure control with standard anticonvulsant protocol.",
				"Monitor sensorium and vitals; escalate on any deterioration.",
			},
		}
	}

	return models.RuleResult{
		Status:  models.RuleStatusNotMet,
		Message: "Clinical criteria for AES suspicion not met.",
	}
}
