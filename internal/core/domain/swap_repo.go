package domain

import "context"

type SwapRepository interface {
	AddSwap(ctx context.Context, swap Swap) error
	UpdateSwap(ctx context.Context, swap Swap) error
	GetSwap(ctx context.Context, id string) (*Swap, error)
	GetSwapByHash(ctx context.Context, hash SwapHash) (*Swap, error)
	// GetActiveSwaps returns all swaps in a non-terminal state, used to
	// resume coordination after a restart.
	GetActiveSwaps(ctx context.Context) ([]Swap, error)
	Close()
}
