package ehr

import (
	"time"
)

// CodeSystem identifies the coding system a diagnosis code belongs to.
type CodeSystem string

const (
	CodeSystemICD10CM CodeSystem = "ICD10-CM"
	CodeSystemICD10CA CodeSystem = "ICD10-CA"
)

// DiagnosisCode is an immutable diagnosis entry pulled from the EHR.
// Two codes are the same diagnosis when code and code system both match.
type DiagnosisCode struct {
	Code        string     `json:"code"`
	CodeSystem  CodeSystem `json:"code_system"`
	Description string     `json:"description,omitempty"`
}

// Equal reports whether two diagnosis codes identify the same diagnosis.
func (d DiagnosisCode) Equal(other DiagnosisCode) bool {
	return d.Code == other.Code && d.CodeSystem == other.CodeSystem
}

type Demographics struct {
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	DateOfBirth         time.Time `json:"date_of_birth"`
	MedicalRecordNumber string    `json:"medical_record_number"`
	FacilityID          string    `json:"facility_id"`
}

// Patient is the EHR's view of a patient. The onboarding aggregate keeps
// only the patient ID, never a copy of this record.
type Patient struct {
	ID             string          `json:"id"`
	Demographics   Demographics    `json:"demographics"`
	DiagnosisCodes []DiagnosisCode `json:"diagnosis_codes"`
}

// Wire shapes returned by the EHR REST API.

type patientRecord struct {
	PatientID           string `json:"patientId"`
	FirstName           string `json:"firstName"`
	LastName            string `json:"lastName"`
	BirthDate           string `json:"birthDate"`
	MedicalRecordNumber string `json:"medicalRecordNumber"`
	FacilityID          string `json:"facId"`
}

type conditionRecord struct {
	ICD10            string `json:"icd10"`
	ICD10Description string `json:"icd10Description"`
	CodeSystem       string `json:"codeSystem"`
	ClinicalStatus   string `json:"clinicalStatus"`
}

type conditionPage struct {
	Data []conditionRecord `json:"data"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
