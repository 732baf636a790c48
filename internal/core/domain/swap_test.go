package domain_test

import (
	"testing"
	"time"

	"github.com/anchorswap/swapd/internal/core/domain"
	"github.com/anchorswap/swapd/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestSwap(t *testing.T) *domain.Swap {
	t.Helper()

	hash, err := domain.NewSwapHash(make([]byte, domain.SecretSize))
	require.NoError(t, err)
	amount, err := domain.NewAmount(domain.AssetUSDX, 500)
	require.NoError(t, err)

	return domain.NewSwap(
		"swap-1", hash, domain.SwapRolePayer, amount,
		"acct-2", "02aa@1.2.3.4:9735", time.Now().Add(time.Hour).Unix(),
	)
}

func TestSwapLifecycle(t *testing.T) {
	t.Parallel()

	swap := newTestSwap(t)
	require.Equal(t, domain.SwapStatusInit, swap.Status)
	require.False(t, swap.IsTerminal())
	require.False(t, swap.IsCommitted())

	escrowDeadline := time.Now().Add(30 * time.Minute).Unix()
	require.NoError(t, swap.EscrowCreated("esc-1", escrowDeadline))
	require.Equal(t, domain.SwapStatusEscrowPending, swap.Status)
	require.Equal(t, "esc-1", swap.EscrowId)

	require.NoError(t, swap.ChannelReady())
	require.NoError(t, swap.Committed())
	require.True(t, swap.IsCommitted())

	preimage, err := domain.NewSwapPreimage(make([]byte, domain.SecretSize))
	require.NoError(t, err)
	require.NoError(t, swap.Settling(preimage))
	require.Equal(t, preimage, swap.Preimage)

	require.NoError(t, swap.Settled())
	require.True(t, swap.IsTerminal())
}

func TestSwapInvalidTransitions(t *testing.T) {
	t.Parallel()

	swap := newTestSwap(t)

	// cannot skip the escrow leg
	err := swap.ChannelReady()
	require.True(t, errors.INVALID_TRANSITION.Is(err))

	err = swap.Committed()
	require.True(t, errors.INVALID_TRANSITION.Is(err))

	err = swap.Settled()
	require.True(t, errors.INVALID_TRANSITION.Is(err))
}

func TestSwapCancelable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		advance func(t *testing.T, s *domain.Swap)
		wantErr bool
	}{
		{"init", func(t *testing.T, s *domain.Swap) {}, false},
		{"escrow_pending", func(t *testing.T, s *domain.Swap) {
			require.NoError(t, s.EscrowCreated("esc-1", 0))
		}, false},
		{"channel_ready", func(t *testing.T, s *domain.Swap) {
			require.NoError(t, s.EscrowCreated("esc-1", 0))
			require.NoError(t, s.ChannelReady())
		}, false},
		{"committed", func(t *testing.T, s *domain.Swap) {
			require.NoError(t, s.EscrowCreated("esc-1", 0))
			require.NoError(t, s.ChannelReady())
			require.NoError(t, s.Committed())
		}, false},
		{"settling", func(t *testing.T, s *domain.Swap) {
			require.NoError(t, s.EscrowCreated("esc-1", 0))
			require.NoError(t, s.ChannelReady())
			require.NoError(t, s.Committed())
			preimage, err := domain.NewSwapPreimage(make([]byte, domain.SecretSize))
			require.NoError(t, err)
			require.NoError(t, s.Settling(preimage))
		}, true},
		{"settled", func(t *testing.T, s *domain.Swap) {
			require.NoError(t, s.EscrowCreated("esc-1", 0))
			require.NoError(t, s.ChannelReady())
			require.NoError(t, s.Committed())
			preimage, err := domain.NewSwapPreimage(make([]byte, domain.SecretSize))
			require.NoError(t, err)
			require.NoError(t, s.Settling(preimage))
			require.NoError(t, s.Settled())
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			swap := newTestSwap(t)
			tt.advance(t, swap)
			err := swap.Canceled()
			if tt.wantErr {
				require.True(t, errors.SWAP_NOT_CANCELABLE.Is(err))
			} else {
				require.NoError(t, err)
				require.Equal(t, domain.SwapStatusCanceled, swap.Status)
			}
		})
	}
}

func TestSwapDeadline(t *testing.T) {
	t.Parallel()

	swap := newTestSwap(t)
	swap.EscrowDeadline = 0
	swap.ChannelDeadline = 200
	require.Equal(t, int64(200), swap.Deadline())

	swap.EscrowDeadline = 100
	require.Equal(t, int64(100), swap.Deadline())

	swap.EscrowDeadline = 300
	require.Equal(t, int64(200), swap.Deadline())

	swap.ChannelDeadline = 0
	require.Equal(t, int64(300), swap.Deadline())
}
