package domain

import (
	"encoding/json"
	"time"

	"github.com/anchorswap/swapd/pkg/errors"
)

type SwapStatus string

const (
	SwapStatusInit          SwapStatus = "init"
	SwapStatusEscrowPending SwapStatus = "escrow_pending"
	SwapStatusChannelReady  SwapStatus = "channel_ready"
	SwapStatusCommitted     SwapStatus = "committed"
	SwapStatusSettling      SwapStatus = "settling"
	SwapStatusSettled       SwapStatus = "settled"
	SwapStatusCanceled      SwapStatus = "canceled"
)

// SwapRole says which escrow side the local user is on.
type SwapRole string

const (
	// SwapRolePayer funds the escrow and receives on the channel leg.
	SwapRolePayer SwapRole = "payer"
	// SwapRolePayee receives the escrow and pays on the channel leg.
	SwapRolePayee SwapRole = "payee"
)

// validTransitions encodes the per-swap state machine. Failure exits to
// canceled are allowed from every non-terminal state except settling:
// past that point the preimage may already be public.
var validTransitions = map[SwapStatus][]SwapStatus{
	SwapStatusInit:          {SwapStatusEscrowPending, SwapStatusCanceled},
	SwapStatusEscrowPending: {SwapStatusChannelReady, SwapStatusCanceled},
	SwapStatusChannelReady:  {SwapStatusCommitted, SwapStatusCanceled},
	SwapStatusCommitted:     {SwapStatusSettling, SwapStatusCanceled},
	SwapStatusSettling:      {SwapStatusSettled},
}

// Swap ties one escrow-leg commitment and one channel-leg commitment under
// a single hash/preimage pair.
type Swap struct {
	Id        string
	CreatedAt int64
	UpdatedAt int64

	Hash SwapHash
	// Preimage is learned from whichever ledger settles first.
	Preimage SwapPreimage
	// PreimageFromEscrow records which ledger revealed the preimage, so
	// a resumed swap settles the right counter leg.
	PreimageFromEscrow bool

	Role   SwapRole
	Amount Amount
	// ChannelAmount is the channel-leg amount in satoshis.
	ChannelAmount uint64
	// PaymentRequest is the counterparty's hash-locked commitment paid on
	// the outgoing channel leg, set when Role is payee.
	PaymentRequest string
	// EscrowExpiry is the escrow window in seconds, applied when this
	// side creates the escrow.
	EscrowExpiry int64

	// CounterpartyId is the counterparty's escrow account id.
	CounterpartyId string
	// CounterpartyAddress is the counterparty's payment-channel network
	// address.
	CounterpartyAddress string

	EscrowId string
	// EscrowDeadline mirrors the escrow timeout (epoch seconds).
	EscrowDeadline int64
	// ChannelDeadline is the channel-leg max time-lock (epoch seconds).
	ChannelDeadline int64

	Status SwapStatus
}

func NewSwap(
	id string, hash SwapHash, role SwapRole, amount Amount,
	counterpartyId, counterpartyAddress string, channelDeadline int64,
) *Swap {
	now := time.Now().Unix()
	return &Swap{
		Id:                  id,
		CreatedAt:           now,
		UpdatedAt:           now,
		Hash:                hash,
		Role:                role,
		Amount:              amount,
		CounterpartyId:      counterpartyId,
		CounterpartyAddress: counterpartyAddress,
		ChannelDeadline:     channelDeadline,
		Status:              SwapStatusInit,
	}
}

func (s *Swap) IsTerminal() bool {
	return s.Status == SwapStatusSettled || s.Status == SwapStatusCanceled
}

// IsCommitted reports whether both legs are committed under the hash.
// Only past this point may a preimage ever be revealed.
func (s *Swap) IsCommitted() bool {
	switch s.Status {
	case SwapStatusCommitted, SwapStatusSettling, SwapStatusSettled:
		return true
	default:
		return false
	}
}

// Deadline returns the earliest of the two leg deadlines. Zero-valued
// deadlines are ignored.
func (s *Swap) Deadline() int64 {
	if s.EscrowDeadline == 0 {
		return s.ChannelDeadline
	}
	if s.ChannelDeadline == 0 || s.EscrowDeadline < s.ChannelDeadline {
		return s.EscrowDeadline
	}
	return s.ChannelDeadline
}

// EscrowCreated records the escrow leg and moves the swap to
// escrow_pending.
func (s *Swap) EscrowCreated(escrowId string, escrowDeadline int64) error {
	if err := s.transitionTo(SwapStatusEscrowPending); err != nil {
		return err
	}
	s.EscrowId = escrowId
	s.EscrowDeadline = escrowDeadline
	return nil
}

func (s *Swap) ChannelReady() error {
	return s.transitionTo(SwapStatusChannelReady)
}

func (s *Swap) Committed() error {
	return s.transitionTo(SwapStatusCommitted)
}

// Settling records the preimage learned from one of the two ledgers. The
// preimage must belong to this swap's hash; the hash match is checked by
// the coordinator before calling this.
func (s *Swap) Settling(preimage SwapPreimage) error {
	if err := s.transitionTo(SwapStatusSettling); err != nil {
		return err
	}
	s.Preimage = preimage
	return nil
}

func (s *Swap) Settled() error {
	return s.transitionTo(SwapStatusSettled)
}

func (s *Swap) Canceled() error {
	if s.Status == SwapStatusSettling || s.Status == SwapStatusSettled {
		return errors.SWAP_NOT_CANCELABLE.New(
			"swap %s is %s, the preimage may already be public", s.Id, s.Status,
		).WithMetadata(errors.SwapMetadata{SwapId: s.Id})
	}
	return s.transitionTo(SwapStatusCanceled)
}

func (s *Swap) transitionTo(next SwapStatus) error {
	for _, allowed := range validTransitions[s.Status] {
		if allowed == next {
			s.Status = next
			s.UpdatedAt = time.Now().Unix()
			return nil
		}
	}
	return errors.INVALID_TRANSITION.New(
		"swap %s cannot move from %s to %s", s.Id, s.Status, next,
	).WithMetadata(errors.TransitionMetadata{
		SwapId: s.Id, From: string(s.Status), To: string(next),
	})
}

func (s Swap) String() string {
	// nolint
	b, _ := json.MarshalIndent(s, "", "  ")
	return string(b)
}
