package application

import (
	"context"

	"github.com/anchorswap/swapd/internal/core/domain"
	"github.com/anchorswap/swapd/internal/core/ports"
	"github.com/anchorswap/swapd/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultSecondsPerBlock int64 = 600
	defaultTargetTime      int64 = 1800
)

// confirmationTarget converts a desired wall-clock delay into a funding
// confirmation target in blocks, never less than one block.
func confirmationTarget(targetTime, secondsPerBlock int64) uint32 {
	if secondsPerBlock <= 0 {
		secondsPerBlock = defaultSecondsPerBlock
	}
	if targetTime < 0 {
		targetTime = 0
	}
	blocks := targetTime / secondsPerBlock
	if blocks < 1 {
		blocks = 1
	}
	return uint32(blocks)
}

// channelOpener runs the channel establishment workflow: it guarantees a
// routable, funded channel exists toward a peer before a channel-leg
// commitment is attempted.
type channelOpener struct {
	channel ports.ChannelService
}

// hasUsableChannel reports whether an active channel toward the peer
// already carries enough local balance for the swap.
func (o *channelOpener) hasUsableChannel(
	ctx context.Context, pubkey string, amount uint64,
) (bool, error) {
	channels, err := o.channel.ListChannels(ctx)
	if err != nil {
		return false, err
	}
	for _, ch := range channels {
		if ch.PeerPubkey == pubkey && ch.Active && ch.LocalBalance >= amount {
			return true, nil
		}
	}
	return false, nil
}

// ensureChannel connects the peer if a host is given and opens a funded
// channel toward it. The first event reporting either a pending funding
// tx or a confirmed channel resolves the workflow; it never waits for
// full confirmation depth. Failures are surfaced unchanged inside a
// channel-open error, retrying is the caller's policy.
func (o *channelOpener) ensureChannel(
	ctx context.Context, addr domain.NetworkAddress, amount uint64, opts ChannelOptions,
) error {
	targetTime := opts.TargetTime
	if targetTime == 0 {
		targetTime = defaultTargetTime
	}
	confTarget := confirmationTarget(targetTime, defaultSecondsPerBlock)

	if addr.Host != "" {
		if err := o.channel.ConnectPeer(ctx, addr.PublicKey, addr.Host); err != nil {
			return errors.CHANNEL_OPEN_FAILED.Wrap(err).
				WithMetadata(errors.PeerMetadata{Pubkey: addr.PublicKey, Host: addr.Host})
		}
	} else {
		log.Debugf("no host in address %s, assuming peer is already connected", addr.PublicKey)
	}

	updates, err := o.channel.OpenChannel(ctx, ports.OpenChannelRequest{
		PeerPubkey: addr.PublicKey,
		Amount:     amount,
		ConfTarget: confTarget,
		Private:    opts.Private,
	})
	if err != nil {
		return errors.CHANNEL_OPEN_FAILED.Wrap(err).
			WithMetadata(errors.PeerMetadata{Pubkey: addr.PublicKey, Host: addr.Host})
	}

	select {
	case <-ctx.Done():
		return errors.CHANNEL_OPEN_FAILED.Wrap(ctx.Err()).
			WithMetadata(errors.PeerMetadata{Pubkey: addr.PublicKey, Host: addr.Host})
	case update, ok := <-updates:
		if !ok {
			return errors.CHANNEL_OPEN_FAILED.New(
				"channel open stream closed before any update",
			).WithMetadata(errors.PeerMetadata{Pubkey: addr.PublicKey, Host: addr.Host})
		}
		if update.Err != nil {
			return errors.CHANNEL_OPEN_FAILED.Wrap(update.Err).
				WithMetadata(errors.PeerMetadata{Pubkey: addr.PublicKey, Host: addr.Host})
		}
		// Both pending-open and confirmed mean the channel is usable
		// enough to proceed.
		log.Debugf(
			"channel toward %s usable, funding %s", addr.PublicKey, update.ChannelPoint,
		)
		return nil
	}
}
