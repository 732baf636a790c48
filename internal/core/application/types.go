package application

import (
	"context"
	"time"

	"github.com/anchorswap/swapd/internal/core/domain"
	"github.com/anchorswap/swapd/internal/core/ports"
)

type Service interface {
	Start() error
	Stop()
	// StartSwap creates (or resumes, keyed by hash) a swap and drives it
	// in the background. It returns the swap id.
	StartSwap(ctx context.Context, req SwapRequest) (string, error)
	// CancelSwap cancels a swap that has not reached the settling phase.
	CancelSwap(ctx context.Context, swapId string) error
	GetSwap(ctx context.Context, swapId string) (*domain.Swap, error)
	GetEventsChannel(ctx context.Context) <-chan SwapEvent

	// Onboarding passthroughs to the escrow provider.
	Register(
		ctx context.Context, identifier string, kycData map[string]string,
	) (*ports.RegistrationResult, error)
	CreateDepositIntent(ctx context.Context, email string) (*ports.DepositIntent, error)
}

// SwapRequest describes one cross-ledger swap to coordinate.
type SwapRequest struct {
	Hash domain.SwapHash
	Role domain.SwapRole
	// Amount is the escrow-leg amount.
	Amount domain.Amount
	// ChannelAmount is the channel-leg amount in satoshis.
	ChannelAmount uint64
	// CounterpartyId is the counterparty's escrow account id.
	CounterpartyId string
	// CounterpartyAddress is the counterparty's payment-channel network
	// address, "<pubkey>" or "<pubkey>@<host>".
	CounterpartyAddress string
	// PaymentRequest is the counterparty's hash-locked commitment to pay,
	// required when Role is payee.
	PaymentRequest string
	// EscrowExpiry is the escrow-leg window, applied when this side
	// creates the escrow.
	EscrowExpiry time.Duration
	// ChannelDeadline is the channel-leg max time-lock (epoch seconds).
	ChannelDeadline int64
}

type SwapEvent struct {
	SwapId string
	Status domain.SwapStatus
	Err    error
}

// ChannelOptions tunes the channel establishment workflow.
type ChannelOptions struct {
	// TargetTime is the desired wall-clock time-to-confirmation in
	// seconds, converted into a confirmation target in blocks.
	TargetTime int64
	Private    bool
}
