package onboarding

import (
	"time"

	"github.com/google/uuid"

	"github.com/mesikahq/niv-onboarding/internal/ehr"
	"github.com/mesikahq/niv-onboarding/internal/eligibility"
)

// Onboarding tracks one patient's progress into the NIV program: the current
// lifecycle status plus the qualifications computed at the last assessment.
// It holds only the patient's ID, never a copy of the EHR record.
type Onboarding struct {
	ID                    string                             `json:"id"`
	PatientID             string                             `json:"patient_id"`
	FacilityID            string                             `json:"facility_id"`
	Status                Status                             `json:"status"`
	AssignedSpecialistID  string                             `json:"assigned_specialist_id,omitempty"`
	Qualifications        eligibility.ClinicalQualifications `json:"qualifications"`
	CreatedAt             time.Time                          `json:"created_at"`
	UpdatedAt             time.Time                          `json:"updated_at"`
}

// New creates the aggregate for a patient's first evaluation: status NEW,
// all qualification flags false.
func New(patientID, facilityID, specialistID string) *Onboarding {
	now := time.Now().UTC()
	return &Onboarding{
		ID:                   uuid.New().String(),
		PatientID:            patientID,
		FacilityID:           facilityID,
		Status:               StatusNew,
		AssignedSpecialistID: specialistID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// AssessClinicalQualifications recomputes the qualification flags from the
// patient's current diagnosis codes and the supplied criteria. Status is not
// touched; there is no background recomputation, staleness is the caller's
// concern via an explicit EHR refresh.
func (o *Onboarding) AssessClinicalQualifications(patient *ehr.Patient, criteria []eligibility.QualificationCriterion) {
	o.Qualifications = eligibility.Assess(patient.DiagnosisCodes, criteria)
	o.UpdatedAt = time.Now().UTC()
}

// UpdateStatus applies a validated transition. On an illegal edge the
// aggregate is left unchanged and the fatal error surfaces to the caller.
func (o *Onboarding) UpdateStatus(target Status) error {
	if !o.Status.CanTransitionTo(target) {
		return ErrInvalidTransition(o.Status, target)
	}
	o.Status = target
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// IsEligible reports overall NIV eligibility as of the last assessment.
func (o *Onboarding) IsEligible() bool {
	return o.Qualifications.Eligible()
}
