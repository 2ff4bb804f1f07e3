package onboarding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/mesikahq/niv-onboarding/internal/audit"
	"github.com/mesikahq/niv-onboarding/internal/ehr"
	"github.com/mesikahq/niv-onboarding/internal/eligibility"
)

type fakeRepository struct {
	byID      map[string]*Onboarding
	byPatient map[string]*Onboarding
	saveErr   error
	saves     int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		byID:      make(map[string]*Onboarding),
		byPatient: make(map[string]*Onboarding),
	}
}

func (r *fakeRepository) Save(ctx context.Context, record *Onboarding) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	copied := *record
	r.byID[record.ID] = &copied
	r.byPatient[record.PatientID] = &copied
	return nil
}

func (r *fakeRepository) FindByID(ctx context.Context, id string) (*Onboarding, error) {
	record, ok := r.byID[id]
	if !ok {
		return nil, ErrOnboardingNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *fakeRepository) FindByPatientID(ctx context.Context, patientID string) (*Onboarding, error) {
	record, ok := r.byPatient[patientID]
	if !ok {
		return nil, ErrOnboardingNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *fakeRepository) FindByFacilityID(ctx context.Context, facilityID string) ([]*Onboarding, error) {
	var out []*Onboarding
	for _, record := range r.byID {
		if record.FacilityID == facilityID {
			copied := *record
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeEHRClient struct {
	patients map[string]*ehr.Patient
	err      error
}

func (c *fakeEHRClient) GetPatient(ctx context.Context, patientID string) (*ehr.Patient, error) {
	if c.err != nil {
		return nil, c.err
	}
	patient, ok := c.patients[patientID]
	if !ok {
		return nil, &ehr.DomainError{
			Code:    ehr.CodePatientNotFound,
			Message: "patient not found",
			Action:  ehr.ActionStop,
		}
	}
	return patient, nil
}

type fakeCriteriaStore struct {
	criteria []eligibility.QualificationCriterion
	err      error
}

func (s *fakeCriteriaStore) GetQualificationCriteria(ctx context.Context) ([]eligibility.QualificationCriterion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.criteria, nil
}

type fakeAuditService struct {
	events []*audit.Event
}

func (s *fakeAuditService) LogEvent(ctx context.Context, event *audit.Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *fakeAuditService) QueryEvents(ctx context.Context, filters map[string]interface{}, from, size int) ([]audit.Event, error) {
	return nil, nil
}

func (s *fakeAuditService) lastEvent() *audit.Event {
	if len(s.events) == 0 {
		return nil
	}
	return s.events[len(s.events)-1]
}

func testPatient(id string, diagnoses ...string) *ehr.Patient {
	patient := &ehr.Patient{
		ID: id,
		Demographics: ehr.Demographics{
			FirstName:  "Ada",
			LastName:   "Lovelace",
			FacilityID: "FAC01",
		},
	}
	for _, code := range diagnoses {
		patient.DiagnosisCodes = append(patient.DiagnosisCodes, ehr.DiagnosisCode{
			Code:       code,
			CodeSystem: ehr.CodeSystemICD10CM,
		})
	}
	return patient
}

func newTestService(repo *fakeRepository, ehrClient *fakeEHRClient, auditSvc *fakeAuditService) Service {
	return NewService(
		repo,
		&fakeCriteriaStore{criteria: eligibility.DefaultCriteria()},
		ehrClient,
		auditSvc,
		zap.NewNop(),
	)
}

func TestAssessPatientCreatesRecord(t *testing.T) {
	repo := newFakeRepository()
	ehrClient := &fakeEHRClient{patients: map[string]*ehr.Patient{
		"patient-1": testPatient("patient-1", "J44.1", "J96.01"),
	}}
	auditSvc := &fakeAuditService{}
	svc := newTestService(repo, ehrClient, auditSvc)

	record, err := svc.AssessPatient(context.Background(), "patient-1")
	if err != nil {
		t.Fatalf("AssessPatient: %v", err)
	}

	if record.Status != StatusNew {
		t.Errorf("first evaluation should start at NEW, got %s", record.Status)
	}
	if record.FacilityID != "FAC01" {
		t.Errorf("FacilityID = %q, want FAC01", record.FacilityID)
	}
	want := eligibility.ClinicalQualifications{COPD: true, ARF: true}
	if record.Qualifications != want {
		t.Errorf("Qualifications = %+v, want %+v", record.Qualifications, want)
	}

	stored, err := repo.FindByPatientID(context.Background(), "patient-1")
	if err != nil {
		t.Fatalf("record was not persisted: %v", err)
	}
	if stored.Qualifications != want {
		t.Errorf("persisted Qualifications = %+v, want %+v", stored.Qualifications, want)
	}

	event := auditSvc.lastEvent()
	if event == nil || event.EventType != audit.EventAssess || event.Status != "success" {
		t.Errorf("expected a successful ASSESS audit event, got %+v", event)
	}
}

func TestAssessPatientReassessesExistingRecord(t *testing.T) {
	repo := newFakeRepository()
	ehrClient := &fakeEHRClient{patients: map[string]*ehr.Patient{
		"patient-1": testPatient("patient-1", "J44.1"),
	}}
	svc := newTestService(repo, ehrClient, &fakeAuditService{})

	first, err := svc.AssessPatient(context.Background(), "patient-1")
	if err != nil {
		t.Fatalf("AssessPatient: %v", err)
	}

	// The diagnosis list changed upstream; a second assessment reuses the
	// record and replaces the flags.
	ehrClient.patients["patient-1"] = testPatient("patient-1", "G12.21")

	second, err := svc.AssessPatient(context.Background(), "patient-1")
	if err != nil {
		t.Fatalf("AssessPatient: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("re-assessment created a new record: %s vs %s", second.ID, first.ID)
	}
	want := eligibility.ClinicalQualifications{NMD: true}
	if second.Qualifications != want {
		t.Errorf("Qualifications = %+v, want %+v", second.Qualifications, want)
	}
}

func TestAssessPatientPropagatesEHRError(t *testing.T) {
	repo := newFakeRepository()
	ehrClient := &fakeEHRClient{patients: map[string]*ehr.Patient{}}
	svc := newTestService(repo, ehrClient, &fakeAuditService{})

	_, err := svc.AssessPatient(context.Background(), "missing")
	var domainErr *ehr.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != ehr.CodePatientNotFound {
		t.Fatalf("expected PATIENT_NOT_FOUND, got %v", err)
	}
	if repo.saves != 0 {
		t.Error("nothing should be persisted when the EHR lookup fails")
	}
}

func TestUpdateStatusPersistsTransition(t *testing.T) {
	repo := newFakeRepository()
	record := New("patient-1", "FAC01", "")
	if err := repo.Save(context.Background(), record); err != nil {
		t.Fatal(err)
	}
	auditSvc := &fakeAuditService{}
	svc := newTestService(repo, &fakeEHRClient{}, auditSvc)

	updated, err := svc.UpdateStatus(context.Background(), record.ID, StatusWatchlist)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != StatusWatchlist {
		t.Errorf("Status = %s, want %s", updated.Status, StatusWatchlist)
	}

	stored, err := repo.FindByID(context.Background(), record.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != StatusWatchlist {
		t.Errorf("persisted Status = %s, want %s", stored.Status, StatusWatchlist)
	}

	event := auditSvc.lastEvent()
	if event == nil || event.EventType != audit.EventStatusChange || event.Status != "success" {
		t.Errorf("expected a successful STATUS_CHANGE audit event, got %+v", event)
	}
}

func TestUpdateStatusInvalidTransitionLeavesStoreUnchanged(t *testing.T) {
	repo := newFakeRepository()
	record := New("patient-1", "FAC01", "")
	if err := repo.Save(context.Background(), record); err != nil {
		t.Fatal(err)
	}
	savesBefore := repo.saves
	auditSvc := &fakeAuditService{}
	svc := newTestService(repo, &fakeEHRClient{}, auditSvc)

	_, err := svc.UpdateStatus(context.Background(), record.ID, StatusActive)
	var domainErr *ehr.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_TRANSITION" {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}

	stored, err := repo.FindByID(context.Background(), record.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != StatusNew {
		t.Errorf("rejected transition mutated stored status to %s", stored.Status)
	}
	if repo.saves != savesBefore {
		t.Error("rejected transition must not write to the repository")
	}

	event := auditSvc.lastEvent()
	if event == nil || event.Status != "failure" {
		t.Errorf("expected a failure audit event, got %+v", event)
	}
}

func TestUpdateStatusUnknownID(t *testing.T) {
	svc := newTestService(newFakeRepository(), &fakeEHRClient{}, &fakeAuditService{})

	_, err := svc.UpdateStatus(context.Background(), "nope", StatusWatchlist)
	if !errors.Is(err, ErrOnboardingNotFound) {
		t.Fatalf("expected ErrOnboardingNotFound, got %v", err)
	}
}

func TestListByFacility(t *testing.T) {
	repo := newFakeRepository()
	for i, facility := range []string{"FAC01", "FAC01", "FAC02"} {
		record := New(fmt.Sprintf("patient-%d", i), facility, "")
		if err := repo.Save(context.Background(), record); err != nil {
			t.Fatal(err)
		}
	}
	svc := newTestService(repo, &fakeEHRClient{}, &fakeAuditService{})

	records, err := svc.ListByFacility(context.Background(), "FAC01")
	if err != nil {
		t.Fatalf("ListByFacility: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
}
