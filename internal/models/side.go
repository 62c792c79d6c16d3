package models

// Side торговое направление: "BUY"/"SELL" или пустая строка (HOLD).
type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) String() string {
	if s == SideNone {
		return "HOLD"
	}
	return string(s)
}

// ParseSide разбирает ответ оракула или запись из БД; всё непонятное даёт SideNone.
func ParseSide(v string) Side {
	switch v {
	case "BUY", "buy", "Buy":
		return SideBuy
	case "SELL", "sell", "Sell":
		return SideSell
	default:
		return SideNone
	}
}
