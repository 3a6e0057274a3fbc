package triage

import "github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"

// Merge folds newly-extracted facts into the existing set, field by field over
// the workflow schema. A non-null extracted value overwrites; a null preserves
// whatever was there before, including a prior null. The merge is one-directional
// by design: each clinician reply only needs to supply the fields it mentions,
// and earlier answers are never lost by a reply that does not repeat them.
//
// Neither input is mutated.
func Merge(workflow models.Workflow, existing, extracted models.FactSet) models.FactSet {
	fields, ok := schemas[workflow]
	if !ok {
		return existing.Clone()
	}
	merged := make(models.FactSet, len(fields))
	for _, field := range fields {
		if v, present := extracted[field]; present && v != nil {
			merged[field] = v
			continue
		}
		if v, present := existing[field]; present {
			merged[field] = v
			continue
		}
		merged[field] = nil
	}
	return merged
}

// Sanitize drops extracted values that cannot be literal clinical findings,
// converting them back to unknown. Currently this covers GCS scores outside
// [3,15] and non-positive day counts.
func Sanitize(workflow models.Workflow, extracted models.FactSet) models.FactSet {
	out := extracted.Clone()
	if gcs, ok := out.Int(FieldGCSScore); ok && (gcs < GCSMin || gcs > GCSMax) {
		out[FieldGCSScore] = nil
	}
	for _, dayField := range []string{FieldDurationDays, FieldFeverDays} {
		if d, ok := out.Int(dayField); ok && d < 0 {
			out[dayField] = nil
		}
	}
	return out
}
