package domain

import (
	"time"

	"github.com/anchorswap/swapd/pkg/errors"
)

type EscrowStatus string

const (
	EscrowStatusPending  EscrowStatus = "pending"
	EscrowStatusCanceled EscrowStatus = "canceled"
	EscrowStatusComplete EscrowStatus = "complete"
)

// ParseEscrowStatus decodes a wire status string into the closed status
// set. Anything outside the set is a protocol violation, never silently
// defaulted.
func ParseEscrowStatus(status string) (EscrowStatus, error) {
	switch EscrowStatus(status) {
	case EscrowStatusPending, EscrowStatusCanceled, EscrowStatusComplete:
		return EscrowStatus(status), nil
	default:
		return "", errors.UNKNOWN_STATUS.New("unrecognized escrow status %q", status).
			WithMetadata(errors.StatusMetadata{Status: status})
	}
}

// Escrow is a server-held, hash-keyed, timeout-bounded commitment of
// funds. The remote escrow service owns its lifecycle, this type is a
// read-only view that is never mutated locally.
type Escrow struct {
	Id          string
	CreatedAt   int64
	UserId      string
	RecipientId string
	Amount      Amount
	Status      EscrowStatus
	// Timeout is the absolute deadline (epoch seconds) after which the
	// escrow service may unilaterally cancel.
	Timeout int64
	Hash    SwapHash
	// Preimage is present only once Status is complete.
	Preimage SwapPreimage
}

func (e Escrow) IsTerminal() bool {
	return e.Status == EscrowStatusCanceled || e.Status == EscrowStatusComplete
}

func (e Escrow) IsExpired(now time.Time) bool {
	return now.Unix() >= e.Timeout
}
