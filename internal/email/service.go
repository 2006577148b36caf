package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/claims-api/internal/model"
)

type Service interface {
	SendClaimDecision(ctx context.Context, claim *model.Claim) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BillingOffice receives claim decision notices.
	BillingOffice string
}

type smtpService struct {
	dialer Dialer
	config Config
}

func NewSMTPService(cfg Config) Service {
	return NewServiceWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg)
}

func NewServiceWithDialer(d Dialer, cfg Config) Service {
	return &smtpService{dialer: d, config: cfg}
}

func (s *smtpService) SendClaimDecision(ctx context.Context, claim *model.Claim) error {
	subject := fmt.Sprintf("Claim %s %s", claim.ID, claim.Status)
	body := fmt.Sprintf(
		"<p>Claim <b>%s</b> for patient %s (%s) was %s.</p><p>Claimed: %.2f<br>Settled: %.2f</p>",
		claim.ID, claim.PatientID, claim.CompanyID, claim.Status, claim.Amount, settled(claim),
	)
	if claim.Notes != nil && *claim.Notes != "" {
		body += fmt.Sprintf("<p>Notes: %s</p>", *claim.Notes)
	}
	return s.SendCustom(ctx, s.config.BillingOffice, subject, body)
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage(gomail.SetEncoding(gomail.Unencoded))
	m.SetHeader("From", s.config.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", content)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

func settled(claim *model.Claim) float64 {
	if claim.Status != model.ClaimStatusApproved {
		return 0
	}
	return claim.SettledAmount()
}

type noopService struct{}

// NewNoopService discards every message; used when mail is disabled.
func NewNoopService() Service {
	return noopService{}
}

func (noopService) SendClaimDecision(ctx context.Context, claim *model.Claim) error { return nil }

func (noopService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	return nil
}
