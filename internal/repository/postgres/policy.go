package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
)

type policyRepository struct {
	BaseRepository
}

func NewPolicyRepository(base BaseRepository) repository.PolicyRepository {
	return &policyRepository{base}
}

const policyColumns = `policy_number, patient_id, company_id, coverage_limit, used, status, expiry_date`

func (r *policyRepository) FindByNumber(ctx context.Context, policyNumber string) (*model.PatientPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM patient_policies WHERE policy_number = $1`
	var p model.PatientPolicy
	if err := r.db.GetContext(ctx, &p, query, policyNumber); err != nil {
		return nil, fmt.Errorf("failed to find policy: %w", notFound(err))
	}
	return &p, nil
}

func (r *policyRepository) ListByPatient(ctx context.Context, patientID string) ([]*model.PatientPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM patient_policies WHERE patient_id = $1 ORDER BY expiry_date DESC`
	var policies []*model.PatientPolicy
	if err := r.db.SelectContext(ctx, &policies, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	return policies, nil
}

func (r *policyRepository) Upsert(ctx context.Context, policy *model.PatientPolicy) error {
	query := `
		INSERT INTO patient_policies (` + policyColumns + `)
		VALUES (:policy_number, :patient_id, :company_id, :coverage_limit, :used, :status, :expiry_date)
		ON CONFLICT (policy_number) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			company_id = EXCLUDED.company_id,
			coverage_limit = EXCLUDED.coverage_limit,
			used = EXCLUDED.used,
			status = EXCLUDED.status,
			expiry_date = EXCLUDED.expiry_date
	`
	if _, err := r.db.NamedExecContext(ctx, query, policy); err != nil {
		return fmt.Errorf("failed to upsert policy: %w", err)
	}
	return nil
}
