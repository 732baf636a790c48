package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/anchorswap/swapd/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const swapStoreDir = "swaps"

type swapRepository struct {
	store *badgerhold.Store
}

type swapDTO struct {
	domain.Swap
}

func NewSwapRepository(config ...interface{}) (domain.SwapRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, swapStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open swap store: %s", err)
	}

	return &swapRepository{store}, nil
}

func (r *swapRepository) AddSwap(ctx context.Context, swap domain.Swap) error {
	if err := r.store.Insert(swap.Id, swapDTO{swap}); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("swap %s already exists", swap.Id)
		}
		return err
	}
	return nil
}

func (r *swapRepository) UpdateSwap(ctx context.Context, swap domain.Swap) error {
	return r.store.Update(swap.Id, swapDTO{swap})
}

func (r *swapRepository) GetSwap(ctx context.Context, id string) (*domain.Swap, error) {
	var dto swapDTO
	if err := r.store.Get(id, &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	swap := dto.Swap
	return &swap, nil
}

func (r *swapRepository) GetSwapByHash(
	ctx context.Context, hash domain.SwapHash,
) (*domain.Swap, error) {
	query := badgerhold.Where("Hash").Eq(hash)
	swaps, err := r.findSwaps(query)
	if err != nil {
		return nil, err
	}
	if len(swaps) <= 0 {
		return nil, nil
	}
	swap := swaps[0]
	return &swap, nil
}

func (r *swapRepository) GetActiveSwaps(ctx context.Context) ([]domain.Swap, error) {
	query := badgerhold.Where("Status").Ne(domain.SwapStatusSettled).
		And("Status").Ne(domain.SwapStatusCanceled)
	return r.findSwaps(query)
}

func (r *swapRepository) Close() {
	// nolint
	r.store.Close()
}

func (r *swapRepository) findSwaps(query *badgerhold.Query) ([]domain.Swap, error) {
	var dtos []swapDTO
	if err := r.store.Find(&dtos, query); err != nil {
		return nil, err
	}
	swaps := make([]domain.Swap, 0, len(dtos))
	for _, dto := range dtos {
		swaps = append(swaps, dto.Swap)
	}
	return swaps, nil
}
