package lndchannel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/anchorswap/swapd/internal/core/domain"
	"github.com/anchorswap/swapd/internal/core/ports"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

type fakeLightningClient struct {
	lnrpc.LightningClient

	payReq    *lnrpc.PayReq
	decodeErr error
	decoded   []string
}

func (f *fakeLightningClient) DecodePayReq(
	_ context.Context, in *lnrpc.PayReqString, _ ...grpc.CallOption,
) (*lnrpc.PayReq, error) {
	f.decoded = append(f.decoded, in.PayReq)
	if f.decodeErr != nil {
		return nil, f.decodeErr
	}
	return f.payReq, nil
}

type fakeRouterClient struct {
	routerrpc.RouterClient

	sent []*routerrpc.SendPaymentRequest
}

func (f *fakeRouterClient) SendPaymentV2(
	_ context.Context, in *routerrpc.SendPaymentRequest, _ ...grpc.CallOption,
) (routerrpc.Router_SendPaymentV2Client, error) {
	f.sent = append(f.sent, in)
	return &fakePaymentStream{}, nil
}

type fakePaymentStream struct {
	grpc.ClientStream
}

func (s *fakePaymentStream) Recv() (*lnrpc.Payment, error) {
	return &lnrpc.Payment{Status: lnrpc.Payment_IN_FLIGHT}, nil
}

func swapHashes(t *testing.T) (domain.SwapHash, string, string) {
	t.Helper()

	buf := make([]byte, domain.SecretSize)
	copy(buf, t.Name())
	hashBuf := sha256.Sum256(buf)
	hash, err := domain.NewSwapHash(hashBuf[:])
	require.NoError(t, err)

	otherBuf := sha256.Sum256(hashBuf[:])
	return hash, hex.EncodeToString(hashBuf[:]), hex.EncodeToString(otherBuf[:])
}

func TestInitiateSwapChecksPaymentRequestHash(t *testing.T) {
	t.Parallel()

	hash, hashHex, otherHex := swapHashes(t)

	t.Run("foreign hash is rejected before paying", func(t *testing.T) {
		ln := &fakeLightningClient{payReq: &lnrpc.PayReq{PaymentHash: otherHex}}
		router := &fakeRouterClient{}
		svc := &service{lnClient: ln, routerClient: router}

		err := svc.InitiateSwap(context.Background(), ports.InitiateSwapRequest{
			Hash:           hash,
			PaymentRequest: "lnbc50u...",
			Amount:         50_000,
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "does not match")
		require.Empty(t, router.sent)
	})

	t.Run("matching hash is paid", func(t *testing.T) {
		ln := &fakeLightningClient{payReq: &lnrpc.PayReq{PaymentHash: hashHex}}
		router := &fakeRouterClient{}
		svc := &service{lnClient: ln, routerClient: router}

		err := svc.InitiateSwap(context.Background(), ports.InitiateSwapRequest{
			Hash:           hash,
			PaymentRequest: "lnbc50u...",
			Amount:         50_000,
			DeadlineDelta:  6,
		})
		require.NoError(t, err)
		require.Equal(t, []string{"lnbc50u..."}, ln.decoded)
		require.Len(t, router.sent, 1)
		require.Equal(t, "lnbc50u...", router.sent[0].PaymentRequest)
		require.Equal(t, int32(6), router.sent[0].CltvLimit)
	})
}
