package depth

// Side represents the direction of a quote or order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) String() string {
	return string(s)
}

func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// Invert returns the opposite side.
func (s Side) Invert() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Sign is the comparison multiplier for price ordering: bids are kept in
// descending price order, asks in ascending order.
func (s Side) Sign() int {
	if s == SideBuy {
		return -1
	}
	return 1
}
