package indicator

// EMASeries возвращает ряд EMA: затравка SMA первых period точек,
// далее ema = (p - ema) * 2/(period+1) + ema. Длина ряда len(series)-period+1.
func EMASeries(series []float64, period int) ([]float64, bool) {
	if period <= 0 || len(series) < period {
		return nil, false
	}

	var seed float64
	for _, p := range series[:period] {
		seed += p
	}
	seed /= float64(period)

	k := 2 / float64(period+1)
	out := make([]float64, 0, len(series)-period+1)
	out = append(out, seed)
	ema := seed
	for _, p := range series[period:] {
		ema = (p-ema)*k + ema
		out = append(out, ema)
	}
	return out, true
}

// EMA последнее значение EMASeries.
func EMA(series []float64, period int) (float64, bool) {
	s, ok := EMASeries(series, period)
	if !ok {
		return 0, false
	}
	return s[len(s)-1], true
}

type MACDResult struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// MACD линия = EMA(short) - EMA(long) по выровненному хвосту, сигнал = EMA(линии, signal).
// Нужно не меньше long+signal точек.
func MACD(series []float64, short, long, signal int) (MACDResult, bool) {
	if short <= 0 || long <= 0 || signal <= 0 || short >= long {
		return MACDResult{}, false
	}
	if len(series) < long+signal {
		return MACDResult{}, false
	}

	shortEMA, _ := EMASeries(series, short)
	longEMA, _ := EMASeries(series, long)

	// longEMA короче: выравниваем по концу
	offset := len(shortEMA) - len(longEMA)
	line := make([]float64, len(longEMA))
	for i := range longEMA {
		line[i] = shortEMA[i+offset] - longEMA[i]
	}

	sig, ok := EMA(line, signal)
	if !ok {
		return MACDResult{}, false
	}
	last := line[len(line)-1]
	return MACDResult{
		Line:      last,
		Signal:    sig,
		Histogram: last - sig,
	}, true
}
