package application

import (
	"context"
	"fmt"
	"testing"

	"github.com/anchorswap/swapd/internal/core/domain"
	"github.com/anchorswap/swapd/internal/core/ports"
	"github.com/anchorswap/swapd/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestConfirmationTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		targetTime      int64
		secondsPerBlock int64
		want            uint32
	}{
		{0, 600, 1},
		{599, 600, 1},
		{600, 600, 1},
		{1800, 600, 3},
		{6000, 600, 10},
		{-5, 600, 1},
		{1200, 0, 2}, // zero falls back to the default block time
	}
	for _, tt := range tests {
		got := confirmationTarget(tt.targetTime, tt.secondsPerBlock)
		require.Equal(t, tt.want, got, "target %d / %d", tt.targetTime, tt.secondsPerBlock)
	}
}

func TestHasUsableChannel(t *testing.T) {
	t.Parallel()

	channel := &fakeChannel{channels: []ports.Channel{
		{PeerPubkey: "02aa", Active: true, LocalBalance: 100_000},
		{PeerPubkey: "02bb", Active: false, LocalBalance: 100_000},
		{PeerPubkey: "02cc", Active: true, LocalBalance: 100},
	}}
	opener := &channelOpener{channel}

	tests := []struct {
		pubkey string
		amount uint64
		want   bool
	}{
		{"02aa", 50_000, true},
		{"02aa", 200_000, false}, // not enough local balance
		{"02bb", 50_000, false},  // inactive
		{"02cc", 50_000, false},
		{"02dd", 50_000, false}, // no channel at all
	}
	for _, tt := range tests {
		got, err := opener.hasUsableChannel(context.Background(), tt.pubkey, tt.amount)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, "peer %s amount %d", tt.pubkey, tt.amount)
	}
}

func TestEnsureChannelFirstEventWins(t *testing.T) {
	t.Parallel()

	addr := domain.NetworkAddress{PublicKey: "02aa", Host: "1.2.3.4:9735"}

	t.Run("pending open is enough", func(t *testing.T) {
		updates := make(chan ports.ChannelOpenUpdate, 1)
		updates <- ports.ChannelOpenUpdate{
			Type: ports.ChannelOpenPending, ChannelPoint: "txid:0",
		}
		channel := &fakeChannel{openUpdates: updates}
		opener := &channelOpener{channel}

		err := opener.ensureChannel(context.Background(), addr, 50_000, ChannelOptions{})
		require.NoError(t, err)
		require.Equal(t, []string{"ConnectPeer", "OpenChannel"}, channel.callList())
	})

	t.Run("confirmed is enough", func(t *testing.T) {
		updates := make(chan ports.ChannelOpenUpdate, 1)
		updates <- ports.ChannelOpenUpdate{
			Type: ports.ChannelOpenConfirmed, ChannelPoint: "txid:0",
		}
		channel := &fakeChannel{openUpdates: updates}
		opener := &channelOpener{channel}

		err := opener.ensureChannel(context.Background(), addr, 50_000, ChannelOptions{})
		require.NoError(t, err)
	})

	t.Run("stream error fails the open", func(t *testing.T) {
		updates := make(chan ports.ChannelOpenUpdate, 1)
		updates <- ports.ChannelOpenUpdate{Err: fmt.Errorf("insufficient funds")}
		channel := &fakeChannel{openUpdates: updates}
		opener := &channelOpener{channel}

		err := opener.ensureChannel(context.Background(), addr, 50_000, ChannelOptions{})
		require.True(t, errors.CHANNEL_OPEN_FAILED.Is(err))
	})

	t.Run("closed stream fails the open", func(t *testing.T) {
		updates := make(chan ports.ChannelOpenUpdate)
		close(updates)
		channel := &fakeChannel{openUpdates: updates}
		opener := &channelOpener{channel}

		err := opener.ensureChannel(context.Background(), addr, 50_000, ChannelOptions{})
		require.True(t, errors.CHANNEL_OPEN_FAILED.Is(err))
	})
}

func TestEnsureChannelConnectsOnlyWithHost(t *testing.T) {
	t.Parallel()

	updates := make(chan ports.ChannelOpenUpdate, 1)
	updates <- ports.ChannelOpenUpdate{Type: ports.ChannelOpenPending}
	channel := &fakeChannel{openUpdates: updates}
	opener := &channelOpener{channel}

	addr := domain.NetworkAddress{PublicKey: "02aa"}
	err := opener.ensureChannel(context.Background(), addr, 50_000, ChannelOptions{})
	require.NoError(t, err)
	require.NotContains(t, channel.callList(), "ConnectPeer")
}

func TestEnsureChannelConnectFailure(t *testing.T) {
	t.Parallel()

	channel := &fakeChannel{connectErr: fmt.Errorf("connection refused")}
	opener := &channelOpener{channel}

	addr := domain.NetworkAddress{PublicKey: "02aa", Host: "1.2.3.4:9735"}
	err := opener.ensureChannel(context.Background(), addr, 50_000, ChannelOptions{})
	require.True(t, errors.CHANNEL_OPEN_FAILED.Is(err))
	require.NotContains(t, channel.callList(), "OpenChannel")
}
