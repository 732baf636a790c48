package ports

import "github.com/anchorswap/swapd/internal/core/domain"

type RepoManager interface {
	Swaps() domain.SwapRepository
	Close()
}
