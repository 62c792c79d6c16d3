package models

// Balances доступные остатки по валютам, снимок на один цикл.
type Balances map[string]float64

func (b Balances) Get(currency string) float64 {
	if b == nil {
		return 0
	}
	return b[currency]
}
