package domain

import (
	"fmt"

	"github.com/anchorswap/swapd/pkg/errors"
	"github.com/shopspring/decimal"
)

type Asset string

type Unit string

const (
	AssetBTC  Asset = "BTC"
	AssetUSDX Asset = "USDX"

	UnitSatoshi Unit = "satoshi"
	UnitCent    Unit = "cent"
)

// assetUnits is the total asset -> unit mapping. Every supported asset has
// exactly one valid unit.
var assetUnits = map[Asset]Unit{
	AssetBTC:  UnitSatoshi,
	AssetUSDX: UnitCent,
}

// minorFactor is the number of minor units per major unit of each asset.
var minorFactor = map[Asset]decimal.Decimal{
	AssetBTC:  decimal.NewFromInt(100_000_000),
	AssetUSDX: decimal.NewFromInt(100),
}

// AssetUnit returns the unit an asset is denominated in.
func AssetUnit(asset Asset) (Unit, error) {
	unit, ok := assetUnits[asset]
	if !ok {
		return "", errors.INVALID_ASSET.New("unsupported asset %s", asset).
			WithMetadata(errors.AssetMetadata{Asset: string(asset)})
	}
	return unit, nil
}

// Amount is a value denominated in the minor unit of its asset.
type Amount struct {
	Asset Asset
	Unit  Unit
	Value int64
}

// NewAmount builds an amount from a value in minor units. The unit is
// derived from the asset, never passed in.
func NewAmount(asset Asset, value int64) (Amount, error) {
	unit, err := AssetUnit(asset)
	if err != nil {
		return Amount{}, err
	}
	if value < 0 {
		return Amount{}, errors.INVALID_ASSET.New("negative amount %d %s", value, asset).
			WithMetadata(errors.AssetMetadata{Asset: string(asset)})
	}
	return Amount{Asset: asset, Unit: unit, Value: value}, nil
}

// NewAmountFromDecimal builds an amount from a value in major units,
// e.g. 0.5 BTC or 5.00 USDX.
func NewAmountFromDecimal(asset Asset, major decimal.Decimal) (Amount, error) {
	factor, ok := minorFactor[asset]
	if !ok {
		return Amount{}, errors.INVALID_ASSET.New("unsupported asset %s", asset).
			WithMetadata(errors.AssetMetadata{Asset: string(asset)})
	}
	minor := major.Mul(factor)
	if !minor.IsInteger() {
		return Amount{}, errors.INVALID_ASSET.New(
			"amount %s %s is below the asset's minor unit", major, asset,
		).WithMetadata(errors.AssetMetadata{Asset: string(asset)})
	}
	return NewAmount(asset, minor.IntPart())
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromInt(a.Value).Div(minorFactor[a.Asset])
}

func (a Amount) String() string {
	return fmt.Sprintf("%d %s (%s)", a.Value, a.Unit, a.Asset)
}
