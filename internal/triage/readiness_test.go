package triage

import (
	"reflect"
	"testing"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

func TestENTEmergencyBypass(t *testing.T) {
	facts := models.FactSet{FieldIsDiabeticImmuno: true}
	r, err := CheckReadiness(models.WorkflowENTAcuteRhinosinusitis, facts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Ready || !r.IsEmergency {
		t.Errorf("diabetic/immunocompromised must bypass: got %+v", r)
	}
	if len(r.MissingInformation) != 0 {
		t.Errorf("emergency result must have empty missing list, got %v", r.MissingInformation)
	}
}

func TestENTMissingFieldsAreClinicianFacing(t *testing.T) {
	r, _ := CheckReadiness(models.WorkflowENTAcuteRhinosinusitis, models.FactSet{})
	if r.Ready || r.IsEmergency {
		t.Fatalf("empty fact set should not be ready: %+v", r)
	}
	want := []string{MissingSymptomDuration, MissingDischargeType}
	if !reflect.DeepEqual(r.MissingInformation, want) {
		t.Errorf("missing = %v, want %v", r.MissingInformation, want)
	}
}

func TestENTReadyWithRequiredFields(t *testing.T) {
	facts := models.FactSet{FieldDurationDays: 5, FieldNasalDischargeType: "watery"}
	r, _ := CheckReadiness(models.WorkflowENTAcuteRhinosinusitis, facts)
	if !r.Ready || r.IsEmergency {
		t.Errorf("duration + discharge known should be ready without emergency: %+v", r)
	}
}

func TestPedsGCSEmergencyPrecedence(t *testing.T) {
	// GCS < 8 wins regardless of everything else being unknown.
	facts := models.FactSet{FieldGCSScore: 7}
	r, _ := CheckReadiness(models.WorkflowPedsAcuteEncephalitis, facts)
	if !r.IsEmergency || !r.Ready {
		t.Errorf("GCS 7 must be an emergency: %+v", r)
	}
}

func TestPedsBoundaryGCSEight(t *testing.T) {
	facts := models.FactSet{FieldGCSScore: 8}
	r, _ := CheckReadiness(models.WorkflowPedsAcuteEncephalitis, facts)
	if r.IsEmergency {
		t.Error("GCS 8 alone is not an emergency bypass")
	}
}

func TestPedsNeuroStatusRequestedOnce(t *testing.T) {
	facts := models.FactSet{FieldFeverDays: 2}
	r, _ := CheckReadiness(models.WorkflowPedsAcuteEncephalitis, facts)
	if r.Ready {
		t.Fatalf("fever alone should not be ready: %+v", r)
	}
	want := []string{MissingNeuroStatus}
	if !reflect.DeepEqual(r.MissingInformation, want) {
		t.Errorf("missing = %v, want %v", r.MissingInformation, want)
	}

	// An explicit negative answer counts as known.
	facts[FieldSeizuresPresent] = false
	r, _ = CheckReadiness(models.WorkflowPedsAcuteEncephalitis, facts)
	if !r.Ready {
		t.Errorf("fever + known seizure status should be ready: %+v", r)
	}
}

func TestReadinessMonotonicity(t *testing.T) {
	// Adding a previously-null field's value never flips ready back to false.
	facts := models.FactSet{FieldDurationDays: 9, FieldNasalDischargeType: "purulent"}
	before, _ := CheckReadiness(models.WorkflowENTAcuteRhinosinusitis, facts)
	if !before.Ready {
		t.Fatalf("precondition failed: %+v", before)
	}
	for _, add := range []struct {
		field string
		value any
	}{
		{FieldIsDiabeticImmuno, false},
		{FieldRedFlagsPresent, false},
		{FieldAntibioticFailure10d, true},
	} {
		grown := facts.Clone()
		grown[add.field] = add.value
		after, _ := CheckReadiness(models.WorkflowENTAcuteRhinosinusitis, grown)
		if !after.Ready {
			t.Errorf("adding %s=%v flipped ready to false", add.field, add.value)
		}
	}
}

func TestReadinessIsIdempotentAndPure(t *testing.T) {
	facts := models.FactSet{FieldFeverDays: 1, FieldAlteredSensorium: nil}
	snapshot := facts.Clone()

	first, err := CheckReadiness(models.WorkflowPedsAcuteEncephalitis, facts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := CheckReadiness(models.WorkflowPedsAcuteEncephalitis, facts)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("readiness not idempotent: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(facts, snapshot) {
		t.Error("readiness mutated its input fact set")
	}
}

func TestReadinessUnsupportedWorkflow(t *testing.T) {
	if _, err := CheckReadiness(models.Workflow("NOPE"), models.FactSet{}); err == nil {
		t.Fatal("expected an error for an unsupported workflow")
	}
}
