package lndchannel

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/anchorswap/swapd/internal/core/domain"
	"github.com/anchorswap/swapd/internal/core/ports"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/invoicesrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/lightningnetwork/lnd/macaroons"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"gopkg.in/macaroon.v2"
)

type Config struct {
	Host         string
	TLSCertPath  string
	MacaroonPath string
}

// service implements ports.ChannelService over the LND gRPC surface.
// Hash-locked commitments map onto hold invoices (incoming leg) and
// tracked payments (outgoing leg).
type service struct {
	lnClient       lnrpc.LightningClient
	invoicesClient invoicesrpc.InvoicesClient
	routerClient   routerrpc.RouterClient
	conn           *grpc.ClientConn
}

func NewService(cfg Config) (ports.ChannelService, error) {
	creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertPath, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load tls cert: %s", err)
	}

	macBytes, err := os.ReadFile(cfg.MacaroonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read macaroon: %s", err)
	}
	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal macaroon: %s", err)
	}
	macCreds, err := macaroons.NewMacaroonCredential(mac)
	if err != nil {
		return nil, fmt.Errorf("failed to create macaroon credential: %s", err)
	}

	conn, err := grpc.NewClient(
		cfg.Host,
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(macCreds),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial channel engine: %s", err)
	}

	return &service{
		lnClient:       lnrpc.NewLightningClient(conn),
		invoicesClient: invoicesrpc.NewInvoicesClient(conn),
		routerClient:   routerrpc.NewRouterClient(conn),
		conn:           conn,
	}, nil
}

func (s *service) ConnectPeer(ctx context.Context, pubkey, host string) error {
	_, err := s.lnClient.ConnectPeer(ctx, &lnrpc.ConnectPeerRequest{
		Addr: &lnrpc.LightningAddress{Pubkey: pubkey, Host: host},
	})
	if err != nil && strings.Contains(err.Error(), "already connected") {
		log.Debugf("peer %s already connected", pubkey)
		return nil
	}
	return err
}

func (s *service) OpenChannel(
	ctx context.Context, req ports.OpenChannelRequest,
) (<-chan ports.ChannelOpenUpdate, error) {
	pubkey, err := hex.DecodeString(req.PeerPubkey)
	if err != nil {
		return nil, fmt.Errorf("invalid peer pubkey: %s", err)
	}

	stream, err := s.lnClient.OpenChannel(ctx, &lnrpc.OpenChannelRequest{
		NodePubkey:         pubkey,
		LocalFundingAmount: int64(req.Amount),
		TargetConf:         int32(req.ConfTarget),
		Private:            req.Private,
	})
	if err != nil {
		return nil, err
	}

	updates := make(chan ports.ChannelOpenUpdate)
	go func() {
		defer close(updates)
		for {
			resp, err := stream.Recv()
			if err != nil {
				select {
				case updates <- ports.ChannelOpenUpdate{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			var update ports.ChannelOpenUpdate
			switch u := resp.Update.(type) {
			case *lnrpc.OpenStatusUpdate_ChanPending:
				update = ports.ChannelOpenUpdate{
					Type: ports.ChannelOpenPending,
					ChannelPoint: fmt.Sprintf(
						"%x:%d", u.ChanPending.Txid, u.ChanPending.OutputIndex,
					),
				}
			case *lnrpc.OpenStatusUpdate_ChanOpen:
				cp := u.ChanOpen.ChannelPoint
				update = ports.ChannelOpenUpdate{
					Type: ports.ChannelOpenConfirmed,
					ChannelPoint: fmt.Sprintf(
						"%s:%d", channelPointTxid(cp), cp.OutputIndex,
					),
				}
			default:
				continue
			}

			select {
			case updates <- update:
			case <-ctx.Done():
				return
			}
			if update.Type == ports.ChannelOpenConfirmed {
				return
			}
		}
	}()
	return updates, nil
}

func (s *service) PrepareSwap(
	ctx context.Context, hash domain.SwapHash, amount uint64, expirySeconds int64,
) (string, error) {
	hashBytes, err := hash.Bytes()
	if err != nil {
		return "", err
	}

	resp, err := s.invoicesClient.AddHoldInvoice(ctx, &invoicesrpc.AddHoldInvoiceRequest{
		Memo:   "swap",
		Hash:   hashBytes,
		Value:  int64(amount),
		Expiry: expirySeconds,
	})
	if err != nil {
		return "", fmt.Errorf("failed to add hold invoice: %s", err)
	}
	return resp.PaymentRequest, nil
}

func (s *service) InitiateSwap(ctx context.Context, req ports.InitiateSwapRequest) error {
	hashHex, err := req.Hash.Hex()
	if err != nil {
		return err
	}

	// the counterparty supplies the payment request, never trust it to
	// carry the swap hash
	payReq, err := s.lnClient.DecodePayReq(ctx, &lnrpc.PayReqString{
		PayReq: req.PaymentRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to decode payment request: %s", err)
	}
	if payReq.PaymentHash != hashHex {
		return fmt.Errorf(
			"payment request hash %s does not match the swap hash %s",
			payReq.PaymentHash, hashHex,
		)
	}

	sendReq := &routerrpc.SendPaymentRequest{
		PaymentRequest: req.PaymentRequest,
		TimeoutSeconds: 60,
	}
	if req.DeadlineDelta > 0 {
		sendReq.CltvLimit = int32(req.DeadlineDelta)
	}

	stream, err := s.routerClient.SendPaymentV2(ctx, sendReq)
	if err != nil {
		return fmt.Errorf("failed to initiate swap payment: %s", err)
	}

	// the commitment exists once the payment is in flight, settlement is
	// tracked separately
	payment, err := stream.Recv()
	if err != nil {
		return fmt.Errorf("swap payment stream error: %s", err)
	}
	if payment.Status == lnrpc.Payment_FAILED {
		return fmt.Errorf("swap payment failed: %s", payment.FailureReason)
	}
	return nil
}

func (s *service) WaitForSwapCommitment(ctx context.Context, hash domain.SwapHash) error {
	hashBytes, err := hash.Bytes()
	if err != nil {
		return err
	}

	stream, err := s.invoicesClient.SubscribeSingleInvoice(
		ctx, &invoicesrpc.SubscribeSingleInvoiceRequest{RHash: hashBytes},
	)
	if err != nil {
		return err
	}
	for {
		invoice, err := stream.Recv()
		if err != nil {
			return err
		}
		switch invoice.State {
		case lnrpc.Invoice_ACCEPTED, lnrpc.Invoice_SETTLED:
			return nil
		case lnrpc.Invoice_CANCELED:
			return fmt.Errorf("swap commitment canceled by the engine")
		}
	}
}

func (s *service) SettleSwap(ctx context.Context, preimage domain.SwapPreimage) error {
	preimageBytes, err := preimage.Bytes()
	if err != nil {
		return err
	}
	if _, err := s.invoicesClient.SettleInvoice(ctx, &invoicesrpc.SettleInvoiceMsg{
		Preimage: preimageBytes,
	}); err != nil {
		return fmt.Errorf("failed to settle swap: %s", err)
	}
	return nil
}

func (s *service) CancelSwap(ctx context.Context, hash domain.SwapHash) error {
	hashBytes, err := hash.Bytes()
	if err != nil {
		return err
	}
	if _, err := s.invoicesClient.CancelInvoice(ctx, &invoicesrpc.CancelInvoiceMsg{
		PaymentHash: hashBytes,
	}); err != nil {
		return fmt.Errorf("failed to cancel swap: %s", err)
	}
	return nil
}

func (s *service) GetSettledSwapPreimage(
	ctx context.Context, hash domain.SwapHash,
) (domain.SwapPreimage, error) {
	hashBytes, err := hash.Bytes()
	if err != nil {
		return "", err
	}

	stream, err := s.routerClient.TrackPaymentV2(ctx, &routerrpc.TrackPaymentRequest{
		PaymentHash:       hashBytes,
		NoInflightUpdates: true,
	})
	if err != nil {
		return "", err
	}
	for {
		payment, err := stream.Recv()
		if err != nil {
			return "", err
		}
		switch payment.Status {
		case lnrpc.Payment_SUCCEEDED:
			return domain.SwapPreimageFromWireHex(payment.PaymentPreimage)
		case lnrpc.Payment_FAILED:
			return "", fmt.Errorf("swap payment failed: %s", payment.FailureReason)
		}
	}
}

func (s *service) GetBalance(ctx context.Context) (*ports.ChannelBalance, error) {
	resp, err := s.lnClient.ChannelBalance(ctx, &lnrpc.ChannelBalanceRequest{})
	if err != nil {
		return nil, err
	}
	balance := &ports.ChannelBalance{}
	if resp.LocalBalance != nil {
		balance.LocalBalance = resp.LocalBalance.Sat
	}
	if resp.RemoteBalance != nil {
		balance.RemoteBalance = resp.RemoteBalance.Sat
	}
	return balance, nil
}

func (s *service) ListChannels(ctx context.Context) ([]ports.Channel, error) {
	resp, err := s.lnClient.ListChannels(ctx, &lnrpc.ListChannelsRequest{})
	if err != nil {
		return nil, err
	}
	channels := make([]ports.Channel, 0, len(resp.Channels))
	for _, ch := range resp.Channels {
		channels = append(channels, ports.Channel{
			PeerPubkey:    ch.RemotePubkey,
			Active:        ch.Active,
			Capacity:      uint64(ch.Capacity),
			LocalBalance:  uint64(ch.LocalBalance),
			RemoteBalance: uint64(ch.RemoteBalance),
		})
	}
	return channels, nil
}

func (s *service) Close() {
	// nolint
	s.conn.Close()
}

func channelPointTxid(cp *lnrpc.ChannelPoint) string {
	if txid := cp.GetFundingTxidStr(); txid != "" {
		return txid
	}
	return hex.EncodeToString(cp.GetFundingTxidBytes())
}
