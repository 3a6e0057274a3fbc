package triage

import "github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"

// applyENTRules is the deterministic rule engine for Acute Rhinosinusitis,
// following the ICMR STW 2019 (ICD-10 J01.90). Decision order: referral red
// flags first, then the 7-day viral/bacterial duration boundary. A duration of
// exactly 7 days is classified bacterial, never viral.
func applyENTRules(facts models.FactSet) models.RuleResult {
	redFlags := facts.IsTrue(FieldRedFlagsPresent)
	diabeticImmuno := facts.IsTrue(FieldIsDiabeticImmuno)
	antibioticFailure := facts.IsTrue(FieldAntibioticFailure10d)

	// Red flags, known diabetic/immunocompromised status, and non-resolution
	// after 10 days of antibiotics all mandate referral regardless of duration.
	if redFlags || diabeticImmuno || antibioticFailure {
		return models.RuleResult{
			Status:  models.RuleStatusUrgentReferral,
			Message: "🚨 RED FLAGS DETECTED: URGENT REFERRAL to District Hospital required.",
			Plan: []string{
				"Immediate referral for suspected complications such as orbital involvement or meningitis.",
				"Screen for Invasive Fungal Sinusitis (palatal/turbinate discoloration).",
				"Known diabetic or immunocompromised patients require immediate referral.",
			},
		}
	}

	if duration, ok := facts.Int(FieldDurationDays); ok {
		if duration < 7 {
			return models.RuleResult{
				Status:  models.RuleStatusViralURI,
				Message: "✅ Symptoms < 7 days suggest Viral Upper Respiratory Infection.",
				Plan: []string{
					"Antibiotics are NOT recommended for viral infections.",
					"Symptomatic care: adequate hydration and steam inhalation.",
					"Normal saline nasal washes to clear secretions.",
					"Topical decongestants (Oxymetazoline) for 3-5 days for relief.",
				},
			}
		}
		return models.RuleResult{
			Status:  models.RuleStatusBacterialARS,
			Message: "✅ Clinical features suggestive of Acute Bacterial Rhinosinusitis.",
			Plan: []string{
				"Duration of treatment 7-14 days.",
				"Oral antibiotics: Amoxycillin or Coamoxyclav for 7-10 days.",
				"Topical budesonide/mometasone nasal spray for 2 weeks.",
				"Saline nasal washes improve the effect of topical medications.",
			},
		}
	}

	required := []string{FieldDurationDays}
	if !facts.Known(FieldIsDiabeticImmuno) {
		required = append(required, FieldIsDiabeticImmuno)
	}
	return models.RuleResult{
		Status:   models.RuleStatusAwaitingData,
		Message:  "Insufficient clinical data to determine management plan.",
		Required: required,
	}
}
