package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/claims-api/internal/model"
)

// SeedReferenceData upserts providers and policies in a single transaction.
func (r *BaseRepository) SeedReferenceData(ctx context.Context, providers []*model.InsuranceProvider, policies []*model.PatientPolicy) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		providerQuery := `
			INSERT INTO insurance_providers (` + providerColumns + `)
			VALUES (:id, :name, :country, :coverage_types, :requires_pre_auth, :processing_days)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				country = EXCLUDED.country,
				coverage_types = EXCLUDED.coverage_types,
				requires_pre_auth = EXCLUDED.requires_pre_auth,
				processing_days = EXCLUDED.processing_days
		`
		for _, p := range providers {
			if _, err := tx.NamedExecContext(ctx, providerQuery, p); err != nil {
				return fmt.Errorf("failed to seed provider %s: %w", p.ID, err)
			}
		}

		policyQuery := `
			INSERT INTO patient_policies (` + policyColumns + `)
			VALUES (:policy_number, :patient_id, :company_id, :coverage_limit, :used, :status, :expiry_date)
			ON CONFLICT (policy_number) DO NOTHING
		`
		for _, p := range policies {
			if _, err := tx.NamedExecContext(ctx, policyQuery, p); err != nil {
				return fmt.Errorf("failed to seed policy %s: %w", p.PolicyNumber, err)
			}
		}
		return nil
	})
}
