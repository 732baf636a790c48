package db

import (
	"fmt"

	"github.com/anchorswap/swapd/internal/core/domain"
	"github.com/anchorswap/swapd/internal/core/ports"
	badgerdb "github.com/anchorswap/swapd/internal/infrastructure/db/badger"
)

var (
	swapStoreTypes = map[string]func(...interface{}) (domain.SwapRepository, error){
		"badger": badgerdb.NewSwapRepository,
	}
)

type ServiceConfig struct {
	DataStoreType   string
	DataStoreConfig []interface{}
}

type service struct {
	swapStore domain.SwapRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	swapStoreFactory, ok := swapStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("swap store type not supported")
	}

	swapStore, err := swapStoreFactory(config.DataStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to open swap store: %s", err)
	}

	return &service{swapStore}, nil
}

func (s *service) Swaps() domain.SwapRepository {
	return s.swapStore
}

func (s *service) Close() {
	s.swapStore.Close()
}
