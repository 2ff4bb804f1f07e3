package onboarding

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mesikahq/niv-onboarding/internal/audit"
	"github.com/mesikahq/niv-onboarding/internal/ehr"
	"github.com/mesikahq/niv-onboarding/internal/eligibility"
)

// EHRClient is the slice of the EHR adapter the workflow needs.
type EHRClient interface {
	GetPatient(ctx context.Context, patientID string) (*ehr.Patient, error)
}

// CriteriaStore supplies the active qualification rule table.
type CriteriaStore interface {
	GetQualificationCriteria(ctx context.Context) ([]eligibility.QualificationCriterion, error)
}

// PatientWithQualifications pairs the live EHR record with the onboarding
// state computed from it.
type PatientWithQualifications struct {
	Patient    *ehr.Patient `json:"patient"`
	Onboarding *Onboarding  `json:"onboarding"`
}

type Service interface {
	AssessPatient(ctx context.Context, patientID string) (*Onboarding, error)
	GetPatientWithQualifications(ctx context.Context, patientID string) (*PatientWithQualifications, error)
	Get(ctx context.Context, id string) (*Onboarding, error)
	UpdateStatus(ctx context.Context, id string, target Status) (*Onboarding, error)
	ListByFacility(ctx context.Context, facilityID string) ([]*Onboarding, error)
}

type service struct {
	repo     Repository
	criteria CriteriaStore
	ehr      EHRClient
	audit    audit.Service
	log      *zap.Logger
}

func NewService(repo Repository, criteria CriteriaStore, ehrClient EHRClient, auditService audit.Service, logger *zap.Logger) Service {
	return &service{
		repo:     repo,
		criteria: criteria,
		ehr:      ehrClient,
		audit:    auditService,
		log:      logger,
	}
}

// AssessPatient pulls the patient's current diagnoses from the EHR,
// recomputes qualifications and persists the aggregate, creating it with
// status NEW on first evaluation. Status is never changed here.
func (s *service) AssessPatient(ctx context.Context, patientID string) (*Onboarding, error) {
	patient, err := s.ehr.GetPatient(ctx, patientID)
	if err != nil {
		s.log.Error("failed to fetch patient from EHR",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return nil, err
	}

	criteria, err := s.criteria.GetQualificationCriteria(ctx)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.FindByPatientID(ctx, patientID)
	if err != nil {
		if !errors.Is(err, ErrOnboardingNotFound) {
			return nil, err
		}
		record = New(patientID, patient.Demographics.FacilityID, "")
	}

	record.AssessClinicalQualifications(patient, criteria)

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventAssess,
		Action:     "ASSESS",
		Resource:   "onboarding",
		ResourceID: record.ID,
		Status:     "success",
		Details: map[string]interface{}{
			"patient_id": patientID,
			"eligible":   record.IsEligible(),
		},
	})

	s.log.Info("assessed clinical qualifications",
		zap.String("patient_id", patientID),
		zap.String("onboarding_id", record.ID),
		zap.Bool("eligible", record.IsEligible()),
	)
	return record, nil
}

// GetPatientWithQualifications returns the live EHR record alongside a fresh
// assessment of it.
func (s *service) GetPatientWithQualifications(ctx context.Context, patientID string) (*PatientWithQualifications, error) {
	record, err := s.AssessPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	patient, err := s.ehr.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &PatientWithQualifications{Patient: patient, Onboarding: record}, nil
}

func (s *service) Get(ctx context.Context, id string) (*Onboarding, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateStatus applies a validated lifecycle transition and persists it. An
// illegal edge leaves the stored record untouched.
func (s *service) UpdateStatus(ctx context.Context, id string, target Status) (*Onboarding, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := record.Status
	if err := record.UpdateStatus(target); err != nil {
		s.audit.LogEvent(ctx, &audit.Event{
			EventType:  audit.EventStatusChange,
			Action:     "STATUS_CHANGE",
			Resource:   "onboarding",
			ResourceID: record.ID,
			Status:     "failure",
			Details: map[string]interface{}{
				"from": string(previous),
				"to":   string(target),
			},
		})
		return nil, err
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventStatusChange,
		Action:     "STATUS_CHANGE",
		Resource:   "onboarding",
		ResourceID: record.ID,
		Status:     "success",
		Details: map[string]interface{}{
			"from": string(previous),
			"to":   string(target),
		},
	})

	s.log.Info("onboarding status updated",
		zap.String("onboarding_id", record.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(target)),
	)
	return record, nil
}

func (s *service) ListByFacility(ctx context.Context, facilityID string) ([]*Onboarding, error) {
	return s.repo.FindByFacilityID(ctx, facilityID)
}
