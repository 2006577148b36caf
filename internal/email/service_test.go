package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/claims-api/internal/model"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func testConfig() Config {
	return Config{From: "claims@hospital.test", BillingOffice: "billing@hospital.test"}
}

func TestSendClaimDecision(t *testing.T) {
	d := &fakeDialer{}
	svc := NewServiceWithDialer(d, testConfig())

	approved := 800.0
	notes := "partial approval"
	claim := &model.Claim{
		ID: uuid.New(), PatientID: "P-1001", CompanyID: "axa-mansard",
		Amount: 1000, Status: model.ClaimStatusApproved, ApprovedAmount: &approved, Notes: &notes,
	}

	require.NoError(t, svc.SendClaimDecision(context.Background(), claim))
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"billing@hospital.test"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Claim " + claim.ID.String() + " Approved"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "800.00")
	assert.Contains(t, buf.String(), "partial approval")
}

func TestSendCustom_Errors(t *testing.T) {
	svc := NewServiceWithDialer(&fakeDialer{err: errors.New("smtp down")}, testConfig())
	err := svc.SendCustom(context.Background(), "a@b.test", "s", "c")
	assert.ErrorContains(t, err, "smtp down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &fakeDialer{}
	err = NewServiceWithDialer(d, testConfig()).SendCustom(ctx, "a@b.test", "s", "c")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, d.sent)
}

func TestNoopService(t *testing.T) {
	svc := NewNoopService()
	assert.NoError(t, svc.SendClaimDecision(context.Background(), &model.Claim{}))
}
