package application

import (
	"context"
	"sync"
	"time"

	"github.com/anchorswap/swapd/internal/core/domain"
	"github.com/anchorswap/swapd/internal/core/ports"
	"github.com/anchorswap/swapd/pkg/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	defaultEscrowPollInterval  = 5 * time.Second
	defaultSettleRetryInterval = 5 * time.Second
)

type service struct {
	// services
	escrow      ports.EscrowService
	channel     ports.ChannelService
	repoManager ports.RepoManager
	scheduler   ports.SchedulerService
	opener      *channelOpener

	// config
	channelOpts         ChannelOptions
	escrowPollInterval  time.Duration
	settleRetryInterval time.Duration

	// channels
	eventsCh chan SwapEvent

	// guards the set of in-flight swap routines and the events channel
	// close
	lock     *sync.Mutex
	inFlight map[string]struct{}
	closed   bool

	// serializes swap store writes against concurrent cancels
	persistLock *sync.Mutex

	// stop and swap-execution go routine handlers
	stop func()
	ctx  context.Context
	wg   *sync.WaitGroup
}

func NewService(
	escrow ports.EscrowService,
	channel ports.ChannelService,
	repoManager ports.RepoManager,
	scheduler ports.SchedulerService,
	channelOpts ChannelOptions,
	escrowPollInterval, settleRetryInterval time.Duration,
) Service {
	if escrowPollInterval <= 0 {
		escrowPollInterval = defaultEscrowPollInterval
	}
	if settleRetryInterval <= 0 {
		settleRetryInterval = defaultSettleRetryInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &service{
		escrow:              escrow,
		channel:             channel,
		repoManager:         repoManager,
		scheduler:           scheduler,
		opener:              &channelOpener{channel},
		channelOpts:         channelOpts,
		escrowPollInterval:  escrowPollInterval,
		settleRetryInterval: settleRetryInterval,
		eventsCh:            make(chan SwapEvent, 64),
		lock:                &sync.Mutex{},
		inFlight:            make(map[string]struct{}),
		persistLock:         &sync.Mutex{},
		stop:                cancel,
		ctx:                 ctx,
		wg:                  &sync.WaitGroup{},
	}
}

func (s *service) Start() error {
	s.scheduler.Start()

	swaps, err := s.repoManager.Swaps().GetActiveSwaps(s.ctx)
	if err != nil {
		return err
	}
	if len(swaps) > 0 {
		log.Infof("resuming %d active swaps", len(swaps))
	}
	for i := range swaps {
		swap := swaps[i]
		s.spawn(&swap)
	}
	return nil
}

func (s *service) Stop() {
	s.stop()
	s.wg.Wait()
	s.scheduler.Stop()

	// a deadline task may still be executing, emit checks the flag under
	// the same lock before touching the channel
	s.lock.Lock()
	s.closed = true
	close(s.eventsCh)
	s.lock.Unlock()
}

func (s *service) StartSwap(ctx context.Context, req SwapRequest) (string, error) {
	if _, err := domain.ParseNetworkAddress(req.CounterpartyAddress); err != nil {
		return "", err
	}
	if _, err := req.Hash.Bytes(); err != nil {
		return "", err
	}
	switch req.Role {
	case domain.SwapRolePayer:
	case domain.SwapRolePayee:
		if req.PaymentRequest == "" {
			return "", errors.INVALID_SWAP_REQUEST.New(
				"missing payment request for a payee swap",
			)
		}
	default:
		return "", errors.INVALID_SWAP_REQUEST.New("unknown swap role %q", req.Role)
	}

	if existing, err := s.repoManager.Swaps().GetSwapByHash(ctx, req.Hash); err != nil {
		return "", err
	} else if existing != nil {
		// a hash binds exactly one swap, a duplicate request resumes it
		log.Debugf("swap %s already known for hash, resuming", existing.Id)
		if !existing.IsTerminal() {
			s.spawn(existing)
		}
		return existing.Id, nil
	}

	swap := domain.NewSwap(
		uuid.New().String(), req.Hash, req.Role, req.Amount,
		req.CounterpartyId, req.CounterpartyAddress, req.ChannelDeadline,
	)
	swap.ChannelAmount = req.ChannelAmount
	swap.PaymentRequest = req.PaymentRequest
	swap.EscrowExpiry = int64(req.EscrowExpiry / time.Second)

	if err := s.repoManager.Swaps().AddSwap(ctx, *swap); err != nil {
		return "", err
	}
	s.emit(swap, nil)
	s.spawn(swap)
	return swap.Id, nil
}

func (s *service) CancelSwap(ctx context.Context, swapId string) error {
	swap, err := s.repoManager.Swaps().GetSwap(ctx, swapId)
	if err != nil {
		return err
	}
	if swap == nil {
		return errors.SWAP_NOT_FOUND.New("swap %s not found", swapId).
			WithMetadata(errors.SwapMetadata{SwapId: swapId})
	}
	return s.cancelSwap(ctx, swap)
}

func (s *service) GetSwap(ctx context.Context, swapId string) (*domain.Swap, error) {
	swap, err := s.repoManager.Swaps().GetSwap(ctx, swapId)
	if err != nil {
		return nil, err
	}
	if swap == nil {
		return nil, errors.SWAP_NOT_FOUND.New("swap %s not found", swapId).
			WithMetadata(errors.SwapMetadata{SwapId: swapId})
	}
	return swap, nil
}

func (s *service) GetEventsChannel(_ context.Context) <-chan SwapEvent {
	return s.eventsCh
}

func (s *service) Register(
	ctx context.Context, identifier string, kycData map[string]string,
) (*ports.RegistrationResult, error) {
	return s.escrow.Register(ctx, identifier, kycData)
}

func (s *service) CreateDepositIntent(
	ctx context.Context, email string,
) (*ports.DepositIntent, error) {
	return s.escrow.CreateDepositIntent(ctx, email)
}

// spawn runs the swap coordination routine, deduplicated per swap id.
func (s *service) spawn(swap *domain.Swap) {
	s.lock.Lock()
	if _, ok := s.inFlight[swap.Id]; ok {
		s.lock.Unlock()
		return
	}
	s.inFlight[swap.Id] = struct{}{}
	s.lock.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.lock.Lock()
			delete(s.inFlight, swap.Id)
			s.lock.Unlock()
		}()
		s.executeSwap(swap)
	}()
}

// executeSwap drives one swap through its state machine, entering the
// chain at whatever phase the persisted status points to.
func (s *service) executeSwap(swap *domain.Swap) {
	ctx := s.ctx

	for {
		var err error
		switch swap.Status {
		case domain.SwapStatusInit:
			err = s.ensureEscrowLeg(ctx, swap)
		case domain.SwapStatusEscrowPending:
			err = s.ensureChannelLeg(ctx, swap)
		case domain.SwapStatusChannelReady:
			err = s.commitChannelLeg(ctx, swap)
		case domain.SwapStatusCommitted:
			err = s.settleSwap(ctx, swap)
		case domain.SwapStatusSettling:
			err = s.resumeSettling(ctx, swap)
		default:
			return
		}

		if err != nil {
			if ctx.Err() != nil {
				// shutting down, the swap resumes on restart
				return
			}
			log.WithError(err).Warnf("swap %s failed in state %s", swap.Id, swap.Status)
			// an escrow canceled remotely after commitment releases the
			// channel leg too, its time-lock protects the funds
			canCancel := !swap.IsTerminal() &&
				(!swap.IsCommitted() ||
					(swap.Status == domain.SwapStatusCommitted && errors.ALREADY_CANCELED.Is(err)))
			if canCancel {
				if cancelErr := s.cancelSwap(ctx, swap); cancelErr != nil {
					log.WithError(cancelErr).Errorf("failed to cancel swap %s", swap.Id)
				}
			}
			s.emit(swap, err)
			return
		}

		if swap.IsTerminal() {
			return
		}
	}
}

// ensureEscrowLeg discovers the escrow for the swap hash or, when the
// local user is the payer, creates it.
func (s *service) ensureEscrowLeg(ctx context.Context, swap *domain.Swap) error {
	escrow, err := s.escrow.GetEscrowByHash(ctx, swap.Hash, ports.EscrowFilter{})
	if err != nil {
		return err
	}

	if escrow == nil {
		switch swap.Role {
		case domain.SwapRolePayer:
			expiry := time.Duration(swap.EscrowExpiry) * time.Second
			if expiry <= 0 {
				expiry = time.Hour
			}
			escrow, err = s.escrow.CreateEscrow(
				ctx, swap.Hash, swap.CounterpartyId, swap.Amount, time.Now().Add(expiry),
			)
			if err != nil {
				return err
			}
		case domain.SwapRolePayee:
			// the counterparty funds the escrow, poll until it shows up
			escrow, err = s.waitForEscrow(ctx, swap)
			if err != nil {
				return err
			}
		}
	}

	if escrow.Status == domain.EscrowStatusCanceled {
		return errors.ALREADY_CANCELED.New("escrow %s was canceled before the swap started", escrow.Id).
			WithMetadata(errors.EscrowMetadata{EscrowId: escrow.Id})
	}

	if err := swap.EscrowCreated(escrow.Id, escrow.Timeout); err != nil {
		return err
	}
	if err := s.persistSwap(ctx, swap); err != nil {
		return err
	}
	s.emit(swap, nil)

	s.armDeadline(swap)
	log.Infof("swap %s: escrow leg %s pending, deadline %d", swap.Id, escrow.Id, swap.Deadline())
	return nil
}

// ensureChannelLeg guarantees a funded channel toward the counterparty,
// skipping the open when one already carries enough balance.
func (s *service) ensureChannelLeg(ctx context.Context, swap *domain.Swap) error {
	addr, err := domain.ParseNetworkAddress(swap.CounterpartyAddress)
	if err != nil {
		return err
	}

	usable, err := s.opener.hasUsableChannel(ctx, addr.PublicKey, swap.ChannelAmount)
	if err != nil {
		return err
	}
	if !usable {
		deadlineCtx, cancel := s.deadlineContext(ctx, swap)
		defer cancel()
		if err := s.opener.ensureChannel(
			deadlineCtx, addr, swap.ChannelAmount, s.channelOpts,
		); err != nil {
			return err
		}
	}

	if err := swap.ChannelReady(); err != nil {
		return err
	}
	if err := s.persistSwap(ctx, swap); err != nil {
		return err
	}
	s.emit(swap, nil)
	log.Infof("swap %s: channel toward %s ready", swap.Id, addr.PublicKey)
	return nil
}

// commitChannelLeg issues the channel-leg hash-locked commitment carrying
// the swap hash and waits until it is locked in.
func (s *service) commitChannelLeg(ctx context.Context, swap *domain.Swap) error {
	deadlineCtx, cancel := s.deadlineContext(ctx, swap)
	defer cancel()

	expiry := swap.Deadline() - time.Now().Unix()
	if expiry <= 0 {
		return errors.EXPIRED_SWAP.New("swap %s deadline elapsed before commitment", swap.Id).
			WithMetadata(errors.DeadlineMetadata{SwapId: swap.Id, Deadline: swap.Deadline()})
	}

	switch swap.Role {
	case domain.SwapRolePayer:
		// incoming channel leg: publish the commitment and wait for the
		// counterparty to lock funds behind the hash
		if _, err := s.channel.PrepareSwap(
			deadlineCtx, swap.Hash, swap.ChannelAmount, expiry,
		); err != nil {
			return err
		}
		if err := s.channel.WaitForSwapCommitment(deadlineCtx, swap.Hash); err != nil {
			return err
		}
	case domain.SwapRolePayee:
		// outgoing channel leg: lock our funds behind the hash, the
		// time-lock bounded by the swap deadline
		if err := s.channel.InitiateSwap(deadlineCtx, ports.InitiateSwapRequest{
			Hash:           swap.Hash,
			PaymentRequest: swap.PaymentRequest,
			Amount:         swap.ChannelAmount,
			DeadlineDelta:  confirmationTarget(expiry, defaultSecondsPerBlock),
		}); err != nil {
			return err
		}
	}

	if err := swap.Committed(); err != nil {
		return err
	}
	if err := s.persistSwap(ctx, swap); err != nil {
		return err
	}
	s.emit(swap, nil)

	// both legs committed, the deadline watchdog is no longer allowed to
	// cancel
	s.scheduler.CancelTask(deadlineTaskId(swap.Id))
	log.Infof("swap %s: both legs committed under hash", swap.Id)
	return nil
}

// settleSwap watches both ledgers for the preimage and presents it to the
// counter ledger as soon as one of them reveals it.
func (s *service) settleSwap(ctx context.Context, swap *domain.Swap) error {
	preimage, fromEscrow, err := s.awaitPreimage(ctx, swap)
	if err != nil {
		return err
	}

	if err := swap.Settling(preimage); err != nil {
		return err
	}
	swap.PreimageFromEscrow = fromEscrow
	if err := s.persistSwap(ctx, swap); err != nil {
		return err
	}
	s.emit(swap, nil)
	log.Infof("swap %s: preimage revealed, settling counter leg", swap.Id)

	return s.settleCounterLeg(ctx, swap)
}

// resumeSettling re-runs the counter-leg settlement with the persisted
// preimage, e.g. after a crash-restart. Both settle operations are
// idempotent thanks to the already-settled normalization.
func (s *service) resumeSettling(ctx context.Context, swap *domain.Swap) error {
	return s.settleCounterLeg(ctx, swap)
}

// awaitPreimage resolves on the first of: escrow completed remotely, or
// the outgoing channel leg settled. It reports where the preimage came
// from so the counter leg can be picked.
func (s *service) awaitPreimage(
	ctx context.Context, swap *domain.Swap,
) (domain.SwapPreimage, bool, error) {
	type result struct {
		preimage   domain.SwapPreimage
		fromEscrow bool
		err        error
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resCh := make(chan result, 2)

	go func() {
		preimage, err := s.watchEscrowLeg(watchCtx, swap)
		resCh <- result{preimage, true, err}
	}()
	go func() {
		preimage, err := s.channel.GetSettledSwapPreimage(watchCtx, swap.Hash)
		resCh <- result{preimage, false, err}
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case res := <-resCh:
			if res.err != nil {
				if watchCtx.Err() != nil {
					continue
				}
				if errors.ALREADY_CANCELED.Is(res.err) {
					// the escrow was canceled remotely, no preimage will
					// ever show up there
					return "", false, res.err
				}
				// let the other watcher win unless both fail
				log.WithError(res.err).Debugf("swap %s: leg watcher failed", swap.Id)
				continue
			}
			return res.preimage, res.fromEscrow, nil
		}
	}
	return "", false, errors.INTERNAL_ERROR.New(
		"both leg watchers of swap %s ended without a preimage", swap.Id,
	)
}

// waitForEscrow polls the escrow service until the counterparty's escrow
// for the swap hash shows up, bounded by the swap deadline.
func (s *service) waitForEscrow(
	ctx context.Context, swap *domain.Swap,
) (*domain.Escrow, error) {
	waitCtx, cancel := s.deadlineContext(ctx, swap)
	defer cancel()

	ticker := time.NewTicker(s.escrowPollInterval)
	defer ticker.Stop()

	for {
		escrow, err := s.escrow.GetEscrowByHash(
			waitCtx, swap.Hash, ports.EscrowFilter{UserId: swap.CounterpartyId},
		)
		if err != nil {
			if errors.AMBIGUOUS_ESCROW.Is(err) {
				return nil, err
			}
			log.WithError(err).Debugf("swap %s: escrow lookup failed, retrying", swap.Id)
		}
		if escrow != nil {
			return escrow, nil
		}

		select {
		case <-waitCtx.Done():
			return nil, errors.EXPIRED_SWAP.Wrap(waitCtx.Err()).
				WithMetadata(errors.DeadlineMetadata{SwapId: swap.Id, Deadline: swap.Deadline()})
		case <-ticker.C:
		}
	}
}

// watchEscrowLeg polls the escrow until it completes and exposes the
// preimage. A remote cancellation fails the watch.
func (s *service) watchEscrowLeg(
	ctx context.Context, swap *domain.Swap,
) (domain.SwapPreimage, error) {
	ticker := time.NewTicker(s.escrowPollInterval)
	defer ticker.Stop()

	for {
		escrow, err := s.escrow.GetEscrow(ctx, swap.EscrowId)
		if err == nil && escrow != nil {
			switch escrow.Status {
			case domain.EscrowStatusComplete:
				if escrow.Hash != swap.Hash {
					return "", errors.AMBIGUOUS_ESCROW.New(
						"escrow %s does not carry the swap hash", escrow.Id,
					).WithMetadata(errors.HashMetadata{Hash: string(swap.Hash), Count: 1})
				}
				return escrow.Preimage, nil
			case domain.EscrowStatusCanceled:
				return "", errors.ALREADY_CANCELED.New(
					"escrow %s canceled remotely", escrow.Id,
				).WithMetadata(errors.EscrowMetadata{EscrowId: escrow.Id})
			}
		}
		if err != nil {
			log.WithError(err).Debugf("swap %s: escrow poll failed, retrying", swap.Id)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// settleCounterLeg presents the revealed preimage to the ledger it did
// not come from, retrying transient failures. Already-settled and
// already-canceled responses end the retry loop.
func (s *service) settleCounterLeg(ctx context.Context, swap *domain.Swap) error {
	ticker := time.NewTicker(s.settleRetryInterval)
	defer ticker.Stop()

	for {
		var err error
		if swap.PreimageFromEscrow {
			err = s.channel.SettleSwap(ctx, swap.Preimage)
		} else {
			if time.Now().Unix() >= swap.EscrowDeadline {
				// the provider may unilaterally cancel past the timeout,
				// completing now could double-settle
				return errors.EXPIRED_SWAP.New(
					"escrow %s timeout elapsed before completion", swap.EscrowId,
				).WithMetadata(errors.DeadlineMetadata{
					SwapId: swap.Id, Deadline: swap.EscrowDeadline,
				})
			}
			err = s.escrow.CompleteEscrow(ctx, swap.EscrowId, swap.Preimage)
		}

		if err == nil || errors.ALREADY_SETTLED.Is(err) {
			break
		}
		if errors.ALREADY_CANCELED.Is(err) {
			return err
		}
		log.WithError(err).Warnf("swap %s: settle attempt failed, retrying", swap.Id)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if err := swap.Settled(); err != nil {
		return err
	}
	if err := s.persistSwap(ctx, swap); err != nil {
		return err
	}
	s.emit(swap, nil)
	log.Infof("swap %s: both legs settled", swap.Id)
	return nil
}

// persistSwap writes the in-memory swap back to the store unless a
// concurrent cancel already made the persisted copy terminal: the stored
// canceled state wins and the in-memory swap is reset to it, so a stale
// routine can never overwrite a user cancel.
func (s *service) persistSwap(ctx context.Context, swap *domain.Swap) error {
	s.persistLock.Lock()
	defer s.persistLock.Unlock()

	stored, err := s.repoManager.Swaps().GetSwap(ctx, swap.Id)
	if err != nil {
		return err
	}
	if stored != nil && stored.Status == domain.SwapStatusCanceled && !swap.IsTerminal() {
		*swap = *stored
		return errors.ALREADY_CANCELED.New("swap %s was canceled concurrently", swap.Id).
			WithMetadata(errors.EscrowMetadata{EscrowId: swap.EscrowId})
	}
	return s.repoManager.Swaps().UpdateSwap(ctx, *swap)
}

// cancelSwap cancels both legs and moves the swap to canceled. Cancel
// requests once the settling phase started are rejected: the preimage may
// already be public.
func (s *service) cancelSwap(ctx context.Context, swap *domain.Swap) error {
	if err := swap.Canceled(); err != nil {
		return err
	}

	if swap.EscrowId != "" {
		if err := s.escrow.CancelEscrow(ctx, swap.EscrowId); err != nil {
			if errors.ALREADY_SETTLED.Is(err) {
				// the preimage was already released, nothing to claw back
				log.Warnf("swap %s: escrow %s already complete", swap.Id, swap.EscrowId)
			} else if !errors.ALREADY_CANCELED.Is(err) {
				return err
			}
		}
	}
	if err := s.channel.CancelSwap(ctx, swap.Hash); err != nil {
		if !errors.ALREADY_CANCELED.Is(err) {
			log.WithError(err).Warnf("swap %s: channel leg cancel failed", swap.Id)
		}
	}

	s.scheduler.CancelTask(deadlineTaskId(swap.Id))
	s.persistLock.Lock()
	err := s.repoManager.Swaps().UpdateSwap(ctx, *swap)
	s.persistLock.Unlock()
	if err != nil {
		return err
	}
	s.emit(swap, nil)
	log.Infof("swap %s: canceled", swap.Id)
	return nil
}

// armDeadline schedules the expiry watchdog: if neither leg reached the
// committed state when the earliest deadline elapses, both legs are
// canceled.
func (s *service) armDeadline(swap *domain.Swap) {
	deadline := swap.Deadline()
	if deadline == 0 {
		return
	}
	swapId := swap.Id
	if err := s.scheduler.ScheduleTaskOnce(deadline, deadlineTaskId(swapId), func() {
		s.onDeadline(swapId)
	}); err != nil {
		log.WithError(err).Errorf("failed to arm deadline for swap %s", swapId)
	}
}

func (s *service) onDeadline(swapId string) {
	ctx := s.ctx
	swap, err := s.repoManager.Swaps().GetSwap(ctx, swapId)
	if err != nil || swap == nil {
		log.WithError(err).Errorf("deadline fired for unknown swap %s", swapId)
		return
	}
	if swap.IsCommitted() || swap.IsTerminal() {
		return
	}
	log.Infof("swap %s: deadline elapsed before commitment, canceling", swapId)
	if err := s.cancelSwap(ctx, swap); err != nil {
		log.WithError(err).Errorf("failed to cancel expired swap %s", swapId)
	}
}

func (s *service) deadlineContext(
	ctx context.Context, swap *domain.Swap,
) (context.Context, context.CancelFunc) {
	deadline := swap.Deadline()
	if deadline == 0 {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, time.Unix(deadline, 0))
}

func (s *service) emit(swap *domain.Swap, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return
	}

	event := SwapEvent{SwapId: swap.Id, Status: swap.Status, Err: err}
	select {
	case s.eventsCh <- event:
	default:
		log.Warnf("events channel full, dropping event for swap %s", swap.Id)
	}
}

func deadlineTaskId(swapId string) string {
	return "swap-deadline-" + swapId
}
