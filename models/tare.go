package models

import "github.com/shopspring/decimal"

// Fixed tare weights in kilograms. These are printed on tags and pinned by
// regression tests; changing them rewrites history for every stored net weight.
var (
	TareTray   = decimal.NewFromFloat(1.5)
	TarePallet = decimal.NewFromInt(25)
)

// NetWeight converts a gross weight plus tray/pallet counts into net weight,
// floored at zero. Used for reception totals and per-pallet tag weights alike.
func NetWeight(gross decimal.Decimal, trays int, pallets int) decimal.Decimal {
	tare := TareTray.Mul(decimal.NewFromInt(int64(trays))).
		Add(TarePallet.Mul(decimal.NewFromInt(int64(pallets))))
	net := gross.Sub(tare)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}
