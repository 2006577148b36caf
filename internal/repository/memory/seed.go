package memory

import (
	"time"

	"github.com/jwalitptl/claims-api/internal/model"
)

// SeedProviders is the reference registry of insurance companies per country.
func SeedProviders() []*model.InsuranceProvider {
	return []*model.InsuranceProvider{
		{ID: "nhis-ng", Name: "National Health Insurance Authority", Country: "NG", CoverageTypes: []string{"Outpatient", "Inpatient", "Maternity"}, RequiresPreAuth: false, ProcessingDays: 14},
		{ID: "axa-mansard", Name: "AXA Mansard Health", Country: "NG", CoverageTypes: []string{"Outpatient", "Inpatient", "Dental", "Optical"}, RequiresPreAuth: true, ProcessingDays: 7},
		{ID: "hygeia-hmo", Name: "Hygeia HMO", Country: "NG", CoverageTypes: []string{"Outpatient", "Inpatient", "Surgery"}, RequiresPreAuth: true, ProcessingDays: 10},
		{ID: "sha-ke", Name: "Social Health Authority", Country: "KE", CoverageTypes: []string{"Outpatient", "Inpatient", "Maternity", "Dialysis"}, RequiresPreAuth: false, ProcessingDays: 21},
		{ID: "jubilee-ke", Name: "Jubilee Health Insurance", Country: "KE", CoverageTypes: []string{"Outpatient", "Inpatient", "Dental"}, RequiresPreAuth: true, ProcessingDays: 5},
		{ID: "aar-ke", Name: "AAR Insurance", Country: "KE", CoverageTypes: []string{"Outpatient", "Inpatient", "Optical"}, RequiresPreAuth: false, ProcessingDays: 7},
		{ID: "nhia-gh", Name: "National Health Insurance Authority Ghana", Country: "GH", CoverageTypes: []string{"Outpatient", "Inpatient"}, RequiresPreAuth: false, ProcessingDays: 30},
		{ID: "discovery-za", Name: "Discovery Health", Country: "ZA", CoverageTypes: []string{"Outpatient", "Inpatient", "Chronic", "Oncology"}, RequiresPreAuth: true, ProcessingDays: 3},
	}
}

// SeedPolicies is the reference set of patient policies.
func SeedPolicies() []*model.PatientPolicy {
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
	}
	return []*model.PatientPolicy{
		{PolicyNumber: "AXA-2024-001", PatientID: "P-1001", CompanyID: "axa-mansard", CoverageLimit: 500000, Used: 120000, Status: model.PolicyStatusActive, ExpiryDate: date(2027, time.December, 31)},
		{PolicyNumber: "HYG-2024-014", PatientID: "P-1002", CompanyID: "hygeia-hmo", CoverageLimit: 300000, Used: 295000, Status: model.PolicyStatusActive, ExpiryDate: date(2027, time.June, 30)},
		{PolicyNumber: "NHIS-2023-778", PatientID: "P-1003", CompanyID: "nhis-ng", CoverageLimit: 200000, Used: 50000, Status: model.PolicyStatusExpired, ExpiryDate: date(2025, time.January, 31)},
		{PolicyNumber: "JUB-2024-203", PatientID: "P-1004", CompanyID: "jubilee-ke", CoverageLimit: 150000, Used: 0, Status: model.PolicyStatusSuspended, ExpiryDate: date(2027, time.March, 31)},
		{PolicyNumber: "SHA-2025-051", PatientID: "P-1001", CompanyID: "sha-ke", CoverageLimit: 100000, Used: 25000, Status: model.PolicyStatusActive, ExpiryDate: date(2027, time.September, 30)},
		{PolicyNumber: "DSC-2024-660", PatientID: "P-1005", CompanyID: "discovery-za", CoverageLimit: 800000, Used: 410000, Status: model.PolicyStatusActive, ExpiryDate: date(2028, time.February, 29)},
	}
}
