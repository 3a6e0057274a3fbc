package triage

import (
	"reflect"
	"strings"
	"testing"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

func TestENTDiabeticTriggersUrgentReferral(t *testing.T) {
	facts := models.FactSet{FieldIsDiabeticImmuno: true}
	result, err := ApplyRules(models.WorkflowENTAcuteRhinosinusitis, facts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != models.RuleStatusUrgentReferral {
		t.Errorf("status = %s, want %s", result.Status, models.RuleStatusUrgentReferral)
	}
}

func TestENTReferralIgnoresDuration(t *testing.T) {
	// Red flags win even over a short, viral-looking duration.
	facts := models.FactSet{FieldRedFlagsPresent: true, FieldDurationDays: 2}
	result, _ := ApplyRules(models.WorkflowENTAcuteRhinosinusitis, facts)
	if result.Status != models.RuleStatusUrgentReferral {
		t.Errorf("status = %s, want %s", result.Status, models.RuleStatusUrgentReferral)
	}
}

func TestENTDurationBoundary(t *testing.T) {
	cases := []struct {
		days int
		want models.RuleStatus
	}{
		{1, models.RuleStatusViralURI},
		{6, models.RuleStatusViralURI},
		{7, models.RuleStatusBacterialARS}, // exactly 7 is bacterial, never viral
		{10, models.RuleStatusBacterialARS},
	}
	for _, c := range cases {
		facts := models.FactSet{FieldDurationDays: c.days, FieldRedFlagsPresent: false}
		result, err := ApplyRules(models.WorkflowENTAcuteRhinosinusitis, facts)
		if err != nil {
			t.Fatalf("days=%d: unexpected error: %v", c.days, err)
		}
		if result.Status != c.want {
			t.Errorf("days=%d: status = %s, want %s", c.days, result.Status, c.want)
		}
	}
}

func TestENTViralPlanHasNoAntibioticCourse(t *testing.T) {
	facts := models.FactSet{
		FieldDurationDays:       3,
		FieldNasalDischargeType: "watery",
		FieldRedFlagsPresent:    false,
	}
	result, _ := ApplyRules(models.WorkflowENTAcuteRhinosinusitis, facts)
	if result.Status != models.RuleStatusViralURI {
		t.Fatalf("status = %s, want %s", result.Status, models.RuleStatusViralURI)
	}
	for _, step := range result.Plan {
		lower := strings.ToLower(step)
		if strings.Contains(lower, "amoxycillin") || strings.Contains(lower, "coamoxyclav") {
			t.Errorf("viral plan must not recommend an antibiotic course: %q", step)
		}
	}
}

func TestENTAwaitingDataNamesRequiredFields(t *testing.T) {
	result, _ := ApplyRules(models.WorkflowENTAcuteRhinosinusitis, models.FactSet{})
	if result.Status != models.RuleStatusAwaitingData {
		t.Fatalf("status = %s, want %s", result.Status, models.RuleStatusAwaitingData)
	}
	found := false
	for _, f := range result.Required {
		if f == FieldDurationDays {
			found = true
		}
	}
	if !found {
		t.Errorf("required fields should include %s, got %v", FieldDurationDays, result.Required)
	}
}

func TestApplyRulesDeterminism(t *testing.T) {
	facts := models.FactSet{FieldDurationDays: 8, FieldIsDiabeticImmuno: false}
	first, err := ApplyRules(models.WorkflowENTAcuteRhinosinusitis, facts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := ApplyRules(models.WorkflowENTAcuteRhinosinusitis, facts)
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs must produce identical output")
	}
}

func TestApplyRulesUnsupportedWorkflow(t *testing.T) {
	_, err := ApplyRules(models.Workflow("DERM_ECZEMA"), models.FactSet{})
	if err == nil {
		t.Fatal("expected an error for an unregistered workflow")
	}
}
