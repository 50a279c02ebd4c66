package ledger

import "github.com/shopspring/decimal"

// ReputationFunc computes an agent's new reputation after its total volume
// moves from prevVolume to newVolume. It must never return less than current.
type ReputationFunc func(current int64, prevVolume, newVolume decimal.Decimal) int64

// LinearReputation accrues pointsPerUnit points for every whole unit of
// cumulative volume. Fractions carry over between trades.
func LinearReputation(pointsPerUnit decimal.Decimal) ReputationFunc {
	return func(current int64, prevVolume, newVolume decimal.Decimal) int64 {
		if !newVolume.GreaterThan(prevVolume) {
			return current
		}
		earned := newVolume.Mul(pointsPerUnit).Floor().Sub(prevVolume.Mul(pointsPerUnit).Floor())
		return current + earned.IntPart()
	}
}

// DefaultReputation awards one point per SOL traded.
var DefaultReputation = LinearReputation(decimal.NewFromInt(1))
