package memory

import (
	"context"
	"sync"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
)

type policyRepository struct {
	mu       sync.RWMutex
	policies map[string]model.PatientPolicy
	order    []string
}

func NewPolicyRepository(seed []*model.PatientPolicy) repository.PolicyRepository {
	r := &policyRepository{policies: make(map[string]model.PatientPolicy, len(seed))}
	for _, p := range seed {
		r.put(*p)
	}
	return r
}

func (r *policyRepository) put(p model.PatientPolicy) {
	if _, exists := r.policies[p.PolicyNumber]; !exists {
		r.order = append(r.order, p.PolicyNumber)
	}
	r.policies[p.PolicyNumber] = p
}

func (r *policyRepository) FindByNumber(ctx context.Context, policyNumber string) (*model.PatientPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.policies[policyNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *policyRepository) ListByPatient(ctx context.Context, patientID string) ([]*model.PatientPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.PatientPolicy
	for _, number := range r.order {
		p := r.policies[number]
		if p.PatientID == patientID {
			result = append(result, &p)
		}
	}
	return result, nil
}

func (r *policyRepository) Upsert(ctx context.Context, policy *model.PatientPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.put(*policy)
	return nil
}
