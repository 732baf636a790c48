package ports

import (
	"context"
	"time"

	"github.com/anchorswap/swapd/internal/core/domain"
)

// EscrowFilter narrows GetEscrowByHash results. Empty fields match
// everything.
type EscrowFilter struct {
	UserId      string
	RecipientId string
}

// RegistrationResult carries the interactive onboarding handoff returned
// by the escrow provider.
type RegistrationResult struct {
	Url       string
	AccountId string
}

// DepositIntent carries the redirect URL the user must visit to complete
// a deposit interactively.
type DepositIntent struct {
	RedirectUrl string
}

// EscrowService is the typed client surface over the centralized escrow
// provider. Escrow lifecycle transitions are driven exclusively by the
// remote service, never locally.
type EscrowService interface {
	CreateEscrow(
		ctx context.Context, hash domain.SwapHash, recipientId string,
		amount domain.Amount, expiresAt time.Time,
	) (*domain.Escrow, error)
	GetEscrow(ctx context.Context, id string) (*domain.Escrow, error)
	// GetEscrowByHash lists escrows for the hash server-side, following
	// continuation pages up to the service's configured cap, then applies
	// the filter. It returns nil (not an error) when nothing matches and
	// fails when more than one unfiltered escrow shares the hash.
	GetEscrowByHash(
		ctx context.Context, hash domain.SwapHash, filter EscrowFilter,
	) (*domain.Escrow, error)
	CancelEscrow(ctx context.Context, id string) error
	CompleteEscrow(ctx context.Context, id string, preimage domain.SwapPreimage) error

	Register(
		ctx context.Context, identifier string, kycData map[string]string,
	) (*RegistrationResult, error)
	CreateDepositIntent(ctx context.Context, email string) (*DepositIntent, error)
}
