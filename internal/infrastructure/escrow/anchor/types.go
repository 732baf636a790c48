package escrowclient

import (
	"github.com/anchorswap/swapd/internal/core/domain"
)

// Wire types of the escrow REST protocol: hex-encoded secrets,
// epoch-seconds timestamps, amounts in the asset's minor unit.

type createEscrowRequest struct {
	Hash      string `json:"hash"`
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Timeout   int64  `json:"timeout"`
}

type completeEscrowRequest struct {
	Preimage string `json:"preimage"`
}

type registerRequest struct {
	Identifier string            `json:"identifier"`
	Kyc        map[string]string `json:"kyc"`
}

type registerResponse struct {
	Url       string `json:"url"`
	AccountId string `json:"account_id"`
}

type depositIntentRequest struct {
	Email string `json:"email"`
}

type depositIntentResponse struct {
	RedirectUrl string `json:"redirect_url"`
}

type escrowResource struct {
	Id        string `json:"id"`
	Created   int64  `json:"created"`
	User      string `json:"user"`
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Timeout   int64  `json:"timeout"`
	Hash      string `json:"hash"`
	Preimage  string `json:"preimage,omitempty"`
}

type escrowPage struct {
	Escrows       []escrowResource `json:"escrows"`
	NextPageToken string           `json:"next_page_token"`
}

type apiError struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

func (r escrowResource) toDomain() (*domain.Escrow, error) {
	status, err := domain.ParseEscrowStatus(r.Status)
	if err != nil {
		return nil, err
	}
	amount, err := domain.NewAmount(domain.Asset(r.Currency), r.Amount)
	if err != nil {
		return nil, err
	}
	hash, err := domain.SwapHashFromWireHex(r.Hash)
	if err != nil {
		return nil, err
	}

	var preimage domain.SwapPreimage
	if r.Preimage != "" {
		preimage, err = domain.SwapPreimageFromWireHex(r.Preimage)
		if err != nil {
			return nil, err
		}
	}

	return &domain.Escrow{
		Id:          r.Id,
		CreatedAt:   r.Created,
		UserId:      r.User,
		RecipientId: r.Recipient,
		Amount:      amount,
		Status:      status,
		Timeout:     r.Timeout,
		Hash:        hash,
		Preimage:    preimage,
	}, nil
}
