package onboarding

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrOnboardingNotFound = errors.New("onboarding record not found")

// Repository is the persistence port for onboarding aggregates. Records are
// never deleted, only superseded by new status.
type Repository interface {
	Save(ctx context.Context, o *Onboarding) error
	FindByID(ctx context.Context, id string) (*Onboarding, error)
	FindByPatientID(ctx context.Context, patientID string) (*Onboarding, error)
	FindByFacilityID(ctx context.Context, facilityID string) ([]*Onboarding, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Save(ctx context.Context, o *Onboarding) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO onboardings (
			id, patient_id, facility_id, status, assigned_specialist_id,
			qualifies_copd, qualifies_arf, qualifies_nmd, qualifies_trd,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			assigned_specialist_id = EXCLUDED.assigned_specialist_id,
			qualifies_copd = EXCLUDED.qualifies_copd,
			qualifies_arf = EXCLUDED.qualifies_arf,
			qualifies_nmd = EXCLUDED.qualifies_nmd,
			qualifies_trd = EXCLUDED.qualifies_trd,
			updated_at = EXCLUDED.updated_at
	`,
		o.ID, o.PatientID, o.FacilityID, o.Status, nullable(o.AssignedSpecialistID),
		o.Qualifications.COPD, o.Qualifications.ARF, o.Qualifications.NMD, o.Qualifications.TRD,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save onboarding record: %w", err)
	}
	return nil
}

func (r *postgresRepository) FindByID(ctx context.Context, id string) (*Onboarding, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectColumns+" FROM onboardings WHERE id = $1", id))
}

func (r *postgresRepository) FindByPatientID(ctx context.Context, patientID string) (*Onboarding, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectColumns+" FROM onboardings WHERE patient_id = $1", patientID))
}

func (r *postgresRepository) FindByFacilityID(ctx context.Context, facilityID string) ([]*Onboarding, error) {
	rows, err := r.db.Query(ctx, selectColumns+" FROM onboardings WHERE facility_id = $1 ORDER BY updated_at DESC", facilityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query onboardings by facility: %w", err)
	}
	defer rows.Close()

	var records []*Onboarding
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating onboarding rows: %w", err)
	}
	return records, nil
}

const selectColumns = `
	SELECT
		id, patient_id, facility_id, status, assigned_specialist_id,
		qualifies_copd, qualifies_arf, qualifies_nmd, qualifies_trd,
		created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *postgresRepository) scanOne(row pgx.Row) (*Onboarding, error) {
	record, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOnboardingNotFound
		}
		return nil, err
	}
	return record, nil
}

func scanRow(row rowScanner) (*Onboarding, error) {
	var o Onboarding
	var specialist *string
	err := row.Scan(
		&o.ID, &o.PatientID, &o.FacilityID, &o.Status, &specialist,
		&o.Qualifications.COPD, &o.Qualifications.ARF, &o.Qualifications.NMD, &o.Qualifications.TRD,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if specialist != nil {
		o.AssignedSpecialistID = *specialist
	}
	return &o, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
