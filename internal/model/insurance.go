package model

import (
	"time"

	"github.com/lib/pq"
)

type PolicyStatus string

const (
	PolicyStatusActive    PolicyStatus = "Active"
	PolicyStatusExpired   PolicyStatus = "Expired"
	PolicyStatusSuspended PolicyStatus = "Suspended"
)

// InsuranceProvider is static reference data describing an insurance company.
type InsuranceProvider struct {
	ID              string         `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Country         string         `db:"country" json:"country"`
	CoverageTypes   pq.StringArray `db:"coverage_types" json:"coverage_types"`
	RequiresPreAuth bool           `db:"requires_pre_auth" json:"requires_pre_auth"`
	ProcessingDays  int            `db:"processing_days" json:"processing_days"`
}

// PatientPolicy is a patient's coverage with one provider.
// Used is expected to stay at or below CoverageLimit but nothing enforces it.
type PatientPolicy struct {
	PolicyNumber  string       `db:"policy_number" json:"policy_number"`
	PatientID     string       `db:"patient_id" json:"patient_id"`
	CompanyID     string       `db:"company_id" json:"company_id"`
	CoverageLimit float64      `db:"coverage_limit" json:"coverage_limit"`
	Used          float64      `db:"used" json:"used"`
	Status        PolicyStatus `db:"status" json:"status"`
	ExpiryDate    time.Time    `db:"expiry_date" json:"expiry_date"`
}

// Remaining is the amount still claimable under the policy.
func (p *PatientPolicy) Remaining() float64 {
	return p.CoverageLimit - p.Used
}

// PolicyView is a policy enriched with derived fields for API responses.
type PolicyView struct {
	*PatientPolicy
	Remaining   float64 `json:"remaining"`
	CompanyName string  `json:"company_name,omitempty"`
}

type VerifyPolicyRequest struct {
	PolicyNumber string  `json:"policy_number" binding:"required"`
	Amount       float64 `json:"amount" binding:"required,gt=0"`
}

// VerificationResult is the outcome of checking a policy against a requested amount.
type VerificationResult struct {
	Valid         bool    `json:"valid"`
	Message       string  `json:"message"`
	PolicyNumber  string  `json:"policy_number"`
	CompanyID     string  `json:"company_id,omitempty"`
	CompanyName   string  `json:"company_name,omitempty"`
	Remaining     float64 `json:"remaining,omitempty"`
	CoverageLimit float64 `json:"coverage_limit,omitempty"`
}
