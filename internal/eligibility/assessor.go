package eligibility

import (
	"github.com/mesikahq/niv-onboarding/internal/ehr"
)

// Assess computes the patient's clinical qualifications from a diagnosis
// code set and the active rule table. A patient qualifies for a category when
// any code classifies into it, so the result is deterministic, duplicate-
// insensitive and order-independent. An empty code list yields all-false;
// unknown codes contribute nothing.
func Assess(codes []ehr.DiagnosisCode, criteria []QualificationCriterion) ClinicalQualifications {
	classifier := NewClassifier(criteria)

	var quals ClinicalQualifications
	for _, code := range codes {
		for category := range classifier.Classify(code.Code) {
			quals.set(category)
		}
	}
	return quals
}
