package ports

import (
	"context"

	"github.com/anchorswap/swapd/internal/core/domain"
)

type ChannelOpenUpdateType int

const (
	// ChannelOpenPending means the funding tx is broadcast but
	// unconfirmed.
	ChannelOpenPending ChannelOpenUpdateType = iota
	// ChannelOpenConfirmed means the channel reached confirmation.
	ChannelOpenConfirmed
)

// ChannelOpenUpdate is one event of the channel-open stream. A non-nil
// Err terminates the stream.
type ChannelOpenUpdate struct {
	Type         ChannelOpenUpdateType
	ChannelPoint string
	Err          error
}

type OpenChannelRequest struct {
	PeerPubkey string
	Amount     uint64
	ConfTarget uint32
	Private    bool
}

type Channel struct {
	PeerPubkey    string
	Active        bool
	Capacity      uint64
	LocalBalance  uint64
	RemoteBalance uint64
}

type ChannelBalance struct {
	LocalBalance  uint64
	RemoteBalance uint64
}

// InitiateSwapRequest carries the counterparty's hash-locked commitment
// request for the outgoing channel leg.
type InitiateSwapRequest struct {
	Hash           domain.SwapHash
	PaymentRequest string
	Amount         uint64
	// DeadlineDelta bounds the outgoing time-lock in blocks.
	DeadlineDelta uint32
}

// ChannelService abstracts the payment-channel engine. The engine owns
// the channel protocol; this core only consumes it. The handle is safe
// for concurrent use by independent swaps.
type ChannelService interface {
	ConnectPeer(ctx context.Context, pubkey, host string) error
	// OpenChannel starts a channel open toward the peer and streams
	// lifecycle updates. The stream is closed once the channel is
	// confirmed or the open fails.
	OpenChannel(ctx context.Context, req OpenChannelRequest) (<-chan ChannelOpenUpdate, error)

	// PrepareSwap registers a hash-locked commitment for an incoming
	// channel-leg payment and returns its payment request.
	PrepareSwap(
		ctx context.Context, hash domain.SwapHash, amount uint64, expirySeconds int64,
	) (string, error)
	// InitiateSwap pays the counterparty's hash-locked commitment on the
	// outgoing leg.
	InitiateSwap(ctx context.Context, req InitiateSwapRequest) error
	// WaitForSwapCommitment blocks until the incoming commitment for the
	// hash is locked in, or ctx expires.
	WaitForSwapCommitment(ctx context.Context, hash domain.SwapHash) error
	// SettleSwap reveals the preimage to settle the incoming channel leg.
	SettleSwap(ctx context.Context, preimage domain.SwapPreimage) error
	CancelSwap(ctx context.Context, hash domain.SwapHash) error
	// GetSettledSwapPreimage blocks until the outgoing channel leg for the
	// hash settles and returns the revealed preimage.
	GetSettledSwapPreimage(ctx context.Context, hash domain.SwapHash) (domain.SwapPreimage, error)

	GetBalance(ctx context.Context) (*ChannelBalance, error)
	ListChannels(ctx context.Context) ([]Channel, error)
	Close()
}
