package indicator

// RSI по Уайлдеру: первые period приращений усредняются, остальные сглаживаются
// avg = (avg*(period-1)+x)/period. Нужно period+1 точек; при нулевом среднем убытке RSI = 100.
func RSI(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period+1 {
		return 0, false
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		gain, loss := split(series[i] - series[i-1])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(series); i++ {
		gain, loss := split(series[i] - series[i-1])
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, true
	}
	rsi := 100 - 100/(1+avgGain/avgLoss)
	switch {
	case rsi < 0:
		rsi = 0
	case rsi > 100:
		rsi = 100
	}
	return rsi, true
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}
