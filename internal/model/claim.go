package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "Pending"
	ClaimStatusApproved ClaimStatus = "Approved"
	ClaimStatusRejected ClaimStatus = "Rejected"
)

// Valid reports whether s is a known claim status.
func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimStatusPending, ClaimStatusApproved, ClaimStatusRejected:
		return true
	}
	return false
}

type Claim struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	PatientID      string      `db:"patient_id" json:"patient_id"`
	CompanyID      string      `db:"company_id" json:"company_id"`
	PolicyNumber   *string     `db:"policy_number" json:"policy_number,omitempty"`
	Amount         float64     `db:"amount" json:"amount"`
	Status         ClaimStatus `db:"status" json:"status"`
	ClaimDate      time.Time   `db:"claim_date" json:"claim_date"`
	ApprovedAmount *float64    `db:"approved_amount" json:"approved_amount,omitempty"`
	Notes          *string     `db:"notes" json:"notes,omitempty"`
	Timestamps
}

// ValidAmount reports whether v is a finite money amount above zero.
func ValidAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// SettledAmount is what an approved claim pays out.
func (c *Claim) SettledAmount() float64 {
	if c.ApprovedAmount != nil {
		return *c.ApprovedAmount
	}
	return c.Amount
}

type SubmitClaimRequest struct {
	PatientID    string  `json:"patient_id" binding:"required"`
	CompanyID    string  `json:"company_id" binding:"required"`
	PolicyNumber string  `json:"policy_number"`
	Amount       float64 `json:"amount" binding:"required,gt=0"`
	Notes        string  `json:"notes" binding:"max=1000"`
}

type DecideClaimRequest struct {
	Status         ClaimStatus `json:"status" binding:"required,claim_decision"`
	ApprovedAmount *float64    `json:"approved_amount" binding:"omitempty,gte=0"`
	Notes          string      `json:"notes" binding:"max=1000"`
}

type ClaimFilters struct {
	Status    ClaimStatus `form:"status"`
	PatientID string      `form:"patient_id"`
	CompanyID string      `form:"company_id"`
	Pagination
}

// ClaimsFinancialSummary aggregates the claims book.
// TotalApproved sums ApprovedAmount when present, else Amount, over approved claims.
type ClaimsFinancialSummary struct {
	TotalClaims   int     `json:"total_claims"`
	PendingCount  int     `json:"pending_count"`
	ApprovedCount int     `json:"approved_count"`
	RejectedCount int     `json:"rejected_count"`
	TotalClaimed  float64 `json:"total_claimed"`
	TotalPending  float64 `json:"total_pending"`
	TotalApproved float64 `json:"total_approved"`
	TotalRejected float64 `json:"total_rejected"`
}
