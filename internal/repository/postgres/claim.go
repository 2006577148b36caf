package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
)

type claimRepository struct {
	BaseRepository
}

func NewClaimRepository(base BaseRepository) repository.ClaimRepository {
	return &claimRepository{base}
}

const claimColumns = `id, patient_id, company_id, policy_number, amount, status, claim_date,
	approved_amount, notes, created_at, updated_at`

func (r *claimRepository) Append(ctx context.Context, claim *model.Claim) error {
	query := `
		INSERT INTO claims (` + claimColumns + `)
		VALUES (:id, :patient_id, :company_id, :policy_number, :amount, :status, :claim_date,
			:approved_amount, :notes, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, claim); err != nil {
		return fmt.Errorf("failed to append claim: %w", err)
	}
	return nil
}

func (r *claimRepository) Get(ctx context.Context, id uuid.UUID) (*model.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = $1`
	var claim model.Claim
	if err := r.db.GetContext(ctx, &claim, query, id); err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", notFound(err))
	}
	return &claim, nil
}

func (r *claimRepository) List(ctx context.Context, filters *model.ClaimFilters) ([]*model.Claim, int, error) {
	if filters == nil {
		filters = &model.ClaimFilters{}
	}

	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filters.Status != "" {
		add("status = $%d", filters.Status)
	}
	if filters.PatientID != "" {
		add("patient_id = $%d", filters.PatientID)
	}
	if filters.CompanyID != "" {
		add("company_id = $%d", filters.CompanyID)
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM claims`+whereSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count claims: %w", err)
	}

	query := `SELECT ` + claimColumns + ` FROM claims` + whereSQL + ` ORDER BY created_at DESC`
	if filters.PageSize > 0 {
		args = append(args, filters.PageSize, filters.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	var claims []*model.Claim
	if err := r.db.SelectContext(ctx, &claims, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list claims: %w", err)
	}
	return claims, total, nil
}

func (r *claimRepository) ListByStatus(ctx context.Context, status model.ClaimStatus) ([]*model.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE status = $1 ORDER BY created_at DESC`
	var claims []*model.Claim
	if err := r.db.SelectContext(ctx, &claims, query, status); err != nil {
		return nil, fmt.Errorf("failed to list claims by status: %w", err)
	}
	return claims, nil
}

func (r *claimRepository) UpdateStatus(ctx context.Context, claim *model.Claim) error {
	query := `UPDATE claims SET status = $1, approved_amount = $2, notes = $3, updated_at = $4 WHERE id = $5 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, claim.Status, claim.ApprovedAmount, claim.Notes, claim.UpdatedAt, claim.ID, model.ClaimStatusPending)
	if err != nil {
		return fmt.Errorf("failed to update claim status: %w", err)
	}
	err = requireAffected(res)
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM claims WHERE id = $1)`, claim.ID); err != nil {
		return fmt.Errorf("failed to check claim: %w", err)
	}
	if exists {
		return repository.ErrConflict
	}
	return repository.ErrNotFound
}
