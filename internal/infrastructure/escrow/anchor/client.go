package escrowclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/anchorswap/swapd/internal/core/domain"
	"github.com/anchorswap/swapd/internal/core/ports"
	"github.com/anchorswap/swapd/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultPageLimit = 200
)

type Config struct {
	BaseUrl string
	ApiKey  string
	Timeout time.Duration
	// PageLimit caps how many escrows a by-hash lookup fetches while
	// following continuation pages.
	PageLimit int
}

type service struct {
	baseUrl   string
	apiKey    string
	pageLimit int
	client    *http.Client
}

func NewService(cfg Config) (ports.EscrowService, error) {
	if cfg.BaseUrl == "" {
		return nil, fmt.Errorf("missing escrow api url")
	}
	if cfg.ApiKey == "" {
		return nil, fmt.Errorf("missing escrow api key")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}
	return &service{
		baseUrl:   cfg.BaseUrl,
		apiKey:    cfg.ApiKey,
		pageLimit: pageLimit,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (s *service) CreateEscrow(
	ctx context.Context, hash domain.SwapHash, recipientId string,
	amount domain.Amount, expiresAt time.Time,
) (*domain.Escrow, error) {
	hashHex, err := hash.Hex()
	if err != nil {
		return nil, err
	}

	body := createEscrowRequest{
		Hash:      hashHex,
		Recipient: recipientId,
		Amount:    amount.Value,
		Currency:  string(amount.Asset),
		Timeout:   expiresAt.Unix(),
	}
	resp, err := s.do(ctx, http.MethodPost, "/escrows", body)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, s.remoteError(resp, "")
	}

	var res escrowResource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	return res.toDomain()
}

func (s *service) GetEscrow(ctx context.Context, id string) (*domain.Escrow, error) {
	resp, err := s.do(ctx, http.MethodGet, "/escrows/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.ESCROW_NOT_FOUND.New("escrow %s not found", id).
			WithMetadata(errors.EscrowMetadata{EscrowId: id})
	}
	if resp.StatusCode != http.StatusOK {
		return nil, s.remoteError(resp, id)
	}

	var res escrowResource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	return res.toDomain()
}

func (s *service) GetEscrowByHash(
	ctx context.Context, hash domain.SwapHash, filter ports.EscrowFilter,
) (*domain.Escrow, error) {
	hashHex, err := hash.Hex()
	if err != nil {
		return nil, err
	}

	matches := make([]escrowResource, 0)
	pageToken := ""
	for {
		path := "/escrows?hash=" + url.QueryEscape(hashHex)
		if pageToken != "" {
			path += "&page_token=" + url.QueryEscape(pageToken)
		}
		resp, err := s.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}

		var page escrowPage
		decodeErr := json.NewDecoder(resp.Body).Decode(&page)
		closeBody(resp)
		if resp.StatusCode != http.StatusOK {
			return nil, s.remoteError(resp, "")
		}
		if decodeErr != nil {
			return nil, errors.INTERNAL_ERROR.Wrap(decodeErr)
		}

		matches = append(matches, page.Escrows...)
		if len(matches) >= s.pageLimit || page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	// a hash binds exactly one swap, more than one escrow for it is a
	// protocol violation
	if len(matches) > 1 {
		return nil, errors.AMBIGUOUS_ESCROW.New(
			"%d escrows share hash %s", len(matches), hashHex,
		).WithMetadata(errors.HashMetadata{Hash: hashHex, Count: len(matches)})
	}

	for _, res := range matches {
		if filter.UserId != "" && res.User != filter.UserId {
			continue
		}
		if filter.RecipientId != "" && res.Recipient != filter.RecipientId {
			continue
		}
		return res.toDomain()
	}
	return nil, nil
}

func (s *service) CancelEscrow(ctx context.Context, id string) error {
	resp, err := s.do(ctx, http.MethodDelete, "/escrows/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusConflict, http.StatusGone:
		return s.conflictError(resp, id)
	default:
		return s.remoteError(resp, id)
	}
}

func (s *service) CompleteEscrow(
	ctx context.Context, id string, preimage domain.SwapPreimage,
) error {
	preimageHex, err := preimage.Hex()
	if err != nil {
		return err
	}

	body := completeEscrowRequest{Preimage: preimageHex}
	resp, err := s.do(ctx, http.MethodPost, "/escrows/"+url.PathEscape(id)+"/complete", body)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusConflict, http.StatusGone:
		return s.conflictError(resp, id)
	default:
		return s.remoteError(resp, id)
	}
}

func (s *service) Register(
	ctx context.Context, identifier string, kycData map[string]string,
) (*ports.RegistrationResult, error) {
	body := registerRequest{Identifier: identifier, Kyc: kycData}
	resp, err := s.do(ctx, http.MethodPost, "/register", body)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, s.remoteError(resp, "")
	}

	var res registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	return &ports.RegistrationResult{Url: res.Url, AccountId: res.AccountId}, nil
}

func (s *service) CreateDepositIntent(
	ctx context.Context, email string,
) (*ports.DepositIntent, error) {
	body := depositIntentRequest{Email: email}
	resp, err := s.do(ctx, http.MethodPost, "/deposit_intents", body)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	// the provider answers 403 when the deposit needs interactive
	// completion, carrying the redirect url: an expected outcome, not a
	// failure
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusForbidden {
		return nil, s.remoteError(resp, "")
	}
	if resp.StatusCode == http.StatusForbidden {
		log.Debug("deposit intent answered 403, treating as interactive redirect")
	}

	var res depositIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	redirect := res.RedirectUrl
	if redirect == "" {
		redirect = resp.Header.Get("Location")
	}
	return &ports.DepositIntent{RedirectUrl: redirect}, nil
}

func (s *service) do(
	ctx context.Context, method, path string, body any,
) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, errors.INTERNAL_ERROR.Wrap(err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseUrl+path, reader)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	req.Header.Add("Content-Type", "application/json")
	req.SetBasicAuth(s.apiKey, "")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// conflictError maps a terminal-state conflict onto the benign
// already-canceled / already-settled classes the coordinator collapses to
// success.
func (s *service) conflictError(resp *http.Response, id string) error {
	var apiErr apiError
	// nolint
	json.NewDecoder(resp.Body).Decode(&apiErr)

	switch domain.EscrowStatus(apiErr.Status) {
	case domain.EscrowStatusCanceled:
		return errors.ALREADY_CANCELED.New("escrow %s already canceled", id).
			WithMetadata(errors.EscrowMetadata{EscrowId: id})
	case domain.EscrowStatusComplete:
		return errors.ALREADY_SETTLED.New("escrow %s already complete", id).
			WithMetadata(errors.EscrowMetadata{EscrowId: id})
	default:
		return errors.REMOTE_REJECTED.New(
			"escrow service rejected the request: %s", apiErr.Error,
		).WithMetadata(errors.EscrowMetadata{EscrowId: id})
	}
}

func (s *service) remoteError(resp *http.Response, id string) error {
	buf, _ := io.ReadAll(resp.Body)
	var apiErr apiError
	msg := string(buf)
	if err := json.Unmarshal(buf, &apiErr); err == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	return errors.REMOTE_REJECTED.New(
		"escrow service answered %d: %s", resp.StatusCode, msg,
	).WithMetadata(errors.EscrowMetadata{EscrowId: id})
}

func closeBody(resp *http.Response) {
	// nolint
	resp.Body.Close()
}
