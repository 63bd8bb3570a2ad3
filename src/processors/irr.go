package processors

import "math"

const (
	irrMaxIterations = 100
	irrTolerance     = 1e-7
	irrInitialGuess  = 0.1
)

// InternalRateOfReturn solves for the periodic rate r such that
// sum(amounts[i] / (1+r)^i) == 0 over the ordered series, using Newton
// iteration with a fixed cap. The series is treated as unit-spaced periods,
// not date-weighted. Reports false when the series has no sign change, the
// iteration does not converge, or the result is not finite.
func InternalRateOfReturn(amounts []float64) (float64, bool) {
	if len(amounts) < 2 {
		return 0, false
	}
	if !hasSignChange(amounts) {
		return 0, false
	}

	rate := irrInitialGuess
	for i := 0; i < irrMaxIterations; i++ {
		npv, derivative := npvAndDerivative(amounts, rate)
		if math.Abs(derivative) < 1e-12 {
			return 0, false
		}
		next := rate - npv/derivative
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return 0, false
		}
		// Keep the discount base positive; step to the midpoint toward -1
		// instead of jumping past it.
		if next <= -1 {
			next = (rate - 1) / 2
		}
		if math.Abs(next-rate) < irrTolerance {
			return next, true
		}
		rate = next
	}
	return 0, false
}

func hasSignChange(amounts []float64) bool {
	var sawNegative, sawPositive bool
	for _, a := range amounts {
		if a < 0 {
			sawNegative = true
		} else if a > 0 {
			sawPositive = true
		}
	}
	return sawNegative && sawPositive
}

func npvAndDerivative(amounts []float64, rate float64) (float64, float64) {
	var npv, derivative float64
	for i, a := range amounts {
		period := float64(i)
		npv += a / math.Pow(1+rate, period)
		if i > 0 {
			derivative -= period * a / math.Pow(1+rate, period+1)
		}
	}
	return npv, derivative
}
