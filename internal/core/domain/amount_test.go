package domain_test

import (
	"testing"

	"github.com/anchorswap/swapd/internal/core/domain"
	"github.com/anchorswap/swapd/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAssetUnit(t *testing.T) {
	t.Parallel()

	unit, err := domain.AssetUnit(domain.AssetBTC)
	require.NoError(t, err)
	require.Equal(t, domain.UnitSatoshi, unit)

	unit, err = domain.AssetUnit(domain.AssetUSDX)
	require.NoError(t, err)
	require.Equal(t, domain.UnitCent, unit)

	_, err = domain.AssetUnit("DOGE")
	require.True(t, errors.INVALID_ASSET.Is(err))
}

func TestNewAmount(t *testing.T) {
	t.Parallel()

	amount, err := domain.NewAmount(domain.AssetUSDX, 500)
	require.NoError(t, err)
	require.Equal(t, domain.UnitCent, amount.Unit)
	require.Equal(t, "5", amount.Decimal().String())

	amount, err = domain.NewAmount(domain.AssetBTC, 100_000_000)
	require.NoError(t, err)
	require.Equal(t, domain.UnitSatoshi, amount.Unit)
	require.Equal(t, "1", amount.Decimal().String())

	_, err = domain.NewAmount(domain.AssetBTC, -1)
	require.True(t, errors.INVALID_ASSET.Is(err))
}

func TestNewAmountFromDecimal(t *testing.T) {
	t.Parallel()

	amount, err := domain.NewAmountFromDecimal(
		domain.AssetUSDX, decimal.RequireFromString("5.00"),
	)
	require.NoError(t, err)
	require.Equal(t, int64(500), amount.Value)

	amount, err = domain.NewAmountFromDecimal(
		domain.AssetBTC, decimal.RequireFromString("0.5"),
	)
	require.NoError(t, err)
	require.Equal(t, int64(50_000_000), amount.Value)

	// below the asset's minor unit
	_, err = domain.NewAmountFromDecimal(
		domain.AssetUSDX, decimal.RequireFromString("5.005"),
	)
	require.True(t, errors.INVALID_ASSET.Is(err))
}
