// Package indicator содержит чистые функции над историей цен.
// Второе возвращаемое значение false означает «недостаточно данных»: такой индикатор не голосует.
package indicator

import "math"

// SMA среднее по последним window точкам.
func SMA(series []float64, window int) (float64, bool) {
	if window <= 0 || len(series) < window {
		return 0, false
	}
	var sum float64
	for _, p := range series[len(series)-window:] {
		sum += p
	}
	return sum / float64(window), true
}

// LongTermAverage SMA по длинному окну (по умолчанию 200).
func LongTermAverage(series []float64, period int) (float64, bool) {
	return SMA(series, period)
}

// Volatility стандартное отклонение пошаговых доходностей (p[i]-p[i-1])/p[i-1]
// по последним window точкам. При менее чем двух точках возвращает 0.
func Volatility(series []float64, window int) float64 {
	if window <= 0 {
		return 0
	}
	tail := series
	if len(tail) > window {
		tail = tail[len(tail)-window:]
	}
	if len(tail) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(tail)-1)
	for i := 1; i < len(tail); i++ {
		if tail[i-1] == 0 {
			continue
		}
		returns = append(returns, (tail[i]-tail[i-1])/tail[i-1])
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}
