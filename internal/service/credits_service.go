package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"clinsight/internal/domain"
	"clinsight/internal/port"
)

// CreditsService exposes the ledger to users and administrators.
type CreditsService interface {
	GetBalance(ctx context.Context, userID string) (*domain.UserCredits, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
	Grant(ctx context.Context, userID string, amount int) (*domain.UserCredits, error)
	SetAdmin(ctx context.Context, userID string, isAdmin bool) (*domain.UserCredits, error)
}

type creditsService struct {
	ledger        port.CreditLedger
	startingGrant int
}

// NewCreditsService creates a new CreditsService implementation.
func NewCreditsService(ledger port.CreditLedger, startingGrant int) CreditsService {
	return &creditsService{ledger: ledger, startingGrant: startingGrant}
}

// GetBalance returns the caller's account, creating it with the starting
// grant on first use.
func (s *creditsService) GetBalance(ctx context.Context, userID string) (*domain.UserCredits, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	acct, err := s.ledger.EnsureAccount(ctx, userID, s.startingGrant)
	if err != nil {
		return nil, fmt.Errorf("credits.GetBalance: %w", err)
	}
	return acct, nil
}

func (s *creditsService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	acct, err := s.ledger.EnsureAccount(ctx, userID, s.startingGrant)
	if err != nil {
		return false, fmt.Errorf("credits.IsAdmin: %w", err)
	}
	return acct.IsAdmin, nil
}

// Grant adds (or, with a negative amount, removes) credits. The balance
// never goes below zero.
func (s *creditsService) Grant(ctx context.Context, userID string, amount int) (*domain.UserCredits, error) {
	if userID == "" || amount == 0 {
		return nil, fmt.Errorf("%w: userId and a non-zero amount are required", domain.ErrInvalidInput)
	}
	if _, err := s.ledger.EnsureAccount(ctx, userID, s.startingGrant); err != nil {
		return nil, fmt.Errorf("credits.Grant: %w", err)
	}
	acct, err := s.ledger.Grant(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("credits.Grant: %w", err)
	}
	log.Info().Str("user_id", userID).Int("amount", amount).Int("balance", acct.Balance).Msg("credits.Grant: balance adjusted")
	return acct, nil
}

func (s *creditsService) SetAdmin(ctx context.Context, userID string, isAdmin bool) (*domain.UserCredits, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}
	if _, err := s.ledger.EnsureAccount(ctx, userID, s.startingGrant); err != nil {
		return nil, fmt.Errorf("credits.SetAdmin: %w", err)
	}
	if err := s.ledger.SetAdmin(ctx, userID, isAdmin); err != nil {
		return nil, fmt.Errorf("credits.SetAdmin: %w", err)
	}
	log.Info().Str("user_id", userID).Bool("is_admin", isAdmin).Msg("credits.SetAdmin: admin flag changed")
	return s.ledger.GetAccount(ctx, userID)
}
