package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/service/audit"
	"github.com/jwalitptl/claims-api/pkg/auth"
	apperrors "github.com/jwalitptl/claims-api/pkg/errors"
	"github.com/jwalitptl/claims-api/pkg/security"
)

var ErrAccountLocked = errors.New("account is locked, please try again later")

const (
	maxLoginAttempts = 5
	lockoutDuration  = 15 * time.Minute
)

// Operator is a billing desk account allowed to use the API.
type Operator struct {
	Username     string
	PasswordHash string
	Role         string
}

type attempts struct {
	failures int
	last     time.Time
}

type Service struct {
	operators map[string]Operator
	hasher    security.PasswordHasher
	// dummyHash is compared against for unknown usernames so they cost the
	// same bcrypt work as a wrong password.
	dummyHash string
	jwtSvc    auth.JWTService
	auditor   *audit.Service

	mu       sync.Mutex
	attempts map[string]*attempts
	now      func() time.Time
}

func NewService(operators []Operator, hasher security.PasswordHasher, jwtSvc auth.JWTService, auditor *audit.Service) *Service {
	byName := make(map[string]Operator, len(operators))
	for _, op := range operators {
		byName[strings.ToLower(op.Username)] = op
	}
	dummyHash, _ := hasher.Hash("unknown-operator-placeholder")
	return &Service{
		operators: byName,
		hasher:    hasher,
		dummyHash: dummyHash,
		jwtSvc:    jwtSvc,
		auditor:   auditor,
		attempts:  make(map[string]*attempts),
		now:       time.Now,
	}
}

// Login checks the operator's password and issues an access token. Five
// consecutive failures lock the username for fifteen minutes. Only configured
// operators are tracked, so unknown names cannot grow the attempt table.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))

	if s.locked(username) {
		s.auditor.Log(ctx, model.AuditActionLogin, model.AuditEntityOperator, username, audit.OutcomeDenied, nil)
		return nil, apperrors.Unauthorized(ErrAccountLocked)
	}

	op, ok := s.operators[username]
	if !ok {
		_ = s.hasher.Compare(s.dummyHash, req.Password)
		s.auditor.Log(ctx, model.AuditActionLogin, model.AuditEntityOperator, username, audit.OutcomeFailure, nil)
		return nil, apperrors.Unauthorized(model.ErrInvalidCredentials)
	}
	if s.hasher.Compare(op.PasswordHash, req.Password) != nil {
		s.recordFailure(username)
		s.auditor.Log(ctx, model.AuditActionLogin, model.AuditEntityOperator, username, audit.OutcomeFailure, nil)
		return nil, apperrors.Unauthorized(model.ErrInvalidCredentials)
	}
	s.reset(username)

	token, err := s.jwtSvc.GenerateAccessToken(op.Username, op.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.auditor.Log(audit.WithActor(ctx, op.Username), model.AuditActionLogin, model.AuditEntityOperator, op.Username, audit.OutcomeSuccess, map[string]interface{}{
		"role": op.Role,
	})

	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtSvc.Expiry().Seconds()),
	}, nil
}

func (s *Service) ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	return claims, nil
}

func (s *Service) locked(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[username]
	if !ok || a.failures < maxLoginAttempts {
		return false
	}
	if s.now().Sub(a.last) >= lockoutDuration {
		delete(s.attempts, username)
		return false
	}
	return true
}

func (s *Service) recordFailure(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[username]
	if !ok {
		a = &attempts{}
		s.attempts[username] = a
	}
	a.failures++
	a.last = s.now()
}

func (s *Service) reset(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, username)
}
