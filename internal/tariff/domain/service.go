package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Resolver looks up building tariffs. It never writes.
type Resolver interface {
	Resolve(ctx context.Context, buildingID snowflake.ID, feeType string) (*PriceQuotation, error)
	LoadSet(ctx context.Context, buildingID snowflake.ID) (Set, error)
}

var (
	ErrTariffMissing        = errors.New("tariff_missing")
	ErrTariffAmbiguous      = errors.New("tariff_ambiguous")
	ErrTariffMethodMismatch = errors.New("tariff_method_mismatch")
)

// IsTariffError reports whether err comes from tariff configuration rather than infrastructure.
func IsTariffError(err error) bool {
	return errors.Is(err, ErrTariffMissing) ||
		errors.Is(err, ErrTariffAmbiguous) ||
		errors.Is(err, ErrTariffMethodMismatch) ||
		errors.Is(err, ErrUnknownMethod) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidUnitPrice)
}
