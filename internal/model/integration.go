package model

import (
	"time"
)

type IntegrationEnvironment string

const (
	EnvironmentSandbox IntegrationEnvironment = "sandbox"
	EnvironmentLive    IntegrationEnvironment = "live"
)

// IntegrationSetting holds third-party API settings for one provider.
// APIKey is plaintext in memory and encrypted by the service before it is stored.
type IntegrationSetting struct {
	Provider    string                 `db:"provider" json:"provider"`
	Enabled     bool                   `db:"enabled" json:"enabled"`
	APIKey      string                 `db:"api_key" json:"-"`
	Environment IntegrationEnvironment `db:"environment" json:"environment"`
	BaseURL     string                 `db:"base_url" json:"base_url,omitempty"`
	UpdatedAt   time.Time              `db:"updated_at" json:"updated_at"`
}

// IntegrationSettingView is the response shape with the key masked.
type IntegrationSettingView struct {
	Provider    string                 `json:"provider"`
	Enabled     bool                   `json:"enabled"`
	APIKey      string                 `json:"api_key,omitempty"`
	Environment IntegrationEnvironment `json:"environment"`
	BaseURL     string                 `json:"base_url,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

type SaveIntegrationRequest struct {
	Enabled     bool                   `json:"enabled"`
	APIKey      *string                `json:"api_key"`
	Environment IntegrationEnvironment `json:"environment" binding:"required,oneof=sandbox live"`
	BaseURL     string                 `json:"base_url" binding:"omitempty,url"`
}

type EligibilityRequest struct {
	MemberNumber string  `json:"member_number" binding:"required"`
	PatientName  string  `json:"patient_name"`
	ServiceCode  string  `json:"service_code"`
	Amount       float64 `json:"amount" binding:"omitempty,gte=0"`
}

type EligibilityResponse struct {
	Eligible      bool      `json:"eligible"`
	MemberNumber  string    `json:"member_number"`
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
	CoverageLimit float64   `json:"coverage_limit,omitempty"`
	Remaining     float64   `json:"remaining,omitempty"`
	ExpiryDate    time.Time `json:"expiry_date,omitempty"`
}

type ExternalClaimRequest struct {
	MemberNumber string  `json:"member_number" binding:"required"`
	PatientID    string  `json:"patient_id" binding:"required"`
	Amount       float64 `json:"amount" binding:"required,gt=0"`
	ServiceCode  string  `json:"service_code"`
	Diagnosis    string  `json:"diagnosis"`
}

type ExternalClaimStatus struct {
	Reference      string      `json:"reference"`
	Status         ClaimStatus `json:"status"`
	ApprovedAmount *float64    `json:"approved_amount,omitempty"`
	Message        string      `json:"message,omitempty"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
