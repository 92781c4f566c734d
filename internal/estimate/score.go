package estimate

import "math"

const (
	MaxScore      = 10.0
	BaseScore     = MaxScore / 2
	ScoreExponent = 1.65
)

// AxisScore scores one axis value in [0, BaseScore]. With lowerIsBetter the
// score grows as value approaches PositionMin, otherwise as it approaches
// PositionMax. The curve is super-linear toward the favorable end.
//
// Values outside the canvas should be normalized first; a computation that
// ends up NaN scores 0.
func AxisScore(value float64, lowerIsBetter bool) float64 {
	normalized := (value - PositionMin) / PositionRange
	adjusted := normalized
	if lowerIsBetter {
		adjusted = 1 - normalized
	}
	score := BaseScore * math.Pow(adjusted, ScoreExponent)
	if math.IsNaN(score) {
		return 0
	}
	return score
}

// PositionScore is the [0, MaxScore] quality indicator for a position:
// simpler and more certain scores higher. It is informational and is not used
// for point estimation.
func PositionScore(p Position) float64 {
	n := Normalize(p)
	return AxisScore(n.X, true) + AxisScore(n.Y, false)
}
