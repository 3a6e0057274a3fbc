package triage

import (
	"reflect"
	"testing"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

func TestMergeNullPreserving(t *testing.T) {
	existing := models.FactSet{
		FieldDurationDays:       5,
		FieldNasalDischargeType: "watery",
		FieldIsDiabeticImmuno:   nil,
	}
	extracted := models.FactSet{
		FieldDurationDays:     nil, // must not erase the prior value
		FieldIsDiabeticImmuno: false,
	}

	merged := Merge(models.WorkflowENTAcuteRhinosinusitis, existing, extracted)

	if d, ok := merged.Int(FieldDurationDays); !ok || d != 5 {
		t.Errorf("null extraction erased duration_days: got %v, %v", d, ok)
	}
	if s, ok := merged.String(FieldNasalDischargeType); !ok || s != "watery" {
		t.Errorf("field absent from extraction lost: got %q, %v", s, ok)
	}
	if b, ok := merged.Bool(FieldIsDiabeticImmuno); !ok || b {
		t.Errorf("explicit false should overwrite null: got %v, %v", b, ok)
	}
}

func TestMergeOverwritesWithNonNull(t *testing.T) {
	existing := models.FactSet{FieldDurationDays: 3}
	extracted := models.FactSet{FieldDurationDays: 9}
	merged := Merge(models.WorkflowENTAcuteRhinosinusitis, existing, extracted)
	if d, _ := merged.Int(FieldDurationDays); d != 9 {
		t.Errorf("non-null extraction should overwrite: got %d, want 9", d)
	}
}

func TestMergeIdempotence(t *testing.T) {
	f := models.FactSet{FieldFeverDays: 2, FieldSeizuresPresent: nil}
	fPrime := models.FactSet{FieldSeizuresPresent: true, FieldGCSScore: 12}

	once := Merge(models.WorkflowPedsAcuteEncephalitis, f, fPrime)
	twice := Merge(models.WorkflowPedsAcuteEncephalitis, f, once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge(F, merge(F, F')) != merge(F, F'):\nonce:  %v\ntwice: %v", once, twice)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	existing := models.FactSet{FieldDurationDays: 4}
	extracted := models.FactSet{FieldDurationDays: nil, FieldRedFlagsPresent: true}
	existingCopy := existing.Clone()
	extractedCopy := extracted.Clone()

	Merge(models.WorkflowENTAcuteRhinosinusitis, existing, extracted)

	if !reflect.DeepEqual(existing, existingCopy) {
		t.Error("merge mutated the existing fact set")
	}
	if !reflect.DeepEqual(extracted, extractedCopy) {
		t.Error("merge mutated the extracted fact set")
	}
}

func TestSanitizeRejectsImpossibleGCS(t *testing.T) {
	for _, gcs := range []int{0, 2, 16, 99, -1} {
		out := Sanitize(models.WorkflowPedsAcuteEncephalitis, models.FactSet{FieldGCSScore: gcs})
		if out.Known(FieldGCSScore) {
			t.Errorf("GCS %d should be treated as unknown, not a literal score", gcs)
		}
	}
	out := Sanitize(models.WorkflowPedsAcuteEncephalitis, models.FactSet{FieldGCSScore: 7})
	if g, ok := out.Int(FieldGCSScore); !ok || g != 7 {
		t.Errorf("in-range GCS should survive sanitation: got %v, %v", g, ok)
	}
}

func TestSanitizeRejectsNegativeDays(t *testing.T) {
	out := Sanitize(models.WorkflowENTAcuteRhinosinusitis, models.FactSet{FieldDurationDays: -3})
	if out.Known(FieldDurationDays) {
		t.Error("a negative duration should be treated as unknown")
	}
}
