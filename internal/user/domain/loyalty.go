package domain

// Rank is a customer loyalty tier. Values are the display names used by the storefront.
type Rank string

const (
	RankBronze   Rank = "Đồng"
	RankSilver   Rank = "Bạc"
	RankGold     Rank = "Vàng"
	RankPlatinum Rank = "Bạch Kim"
	RankDiamond  Rank = "Kim Cương"
)

// ExpPerCurrencyUnit is how much order total earns one exp point.
const ExpPerCurrencyUnit = 1000

var rankThresholds = []struct {
	min  int64
	rank Rank
}{
	{5000, RankDiamond},
	{2000, RankPlatinum},
	{1000, RankGold},
	{500, RankSilver},
}

// RankFor returns the tier for an exp balance.
func RankFor(exp int64) Rank {
	for _, t := range rankThresholds {
		if exp >= t.min {
			return t.rank
		}
	}
	return RankBronze
}

// ExpForTotal returns the exp earned by a successful order: floor(total / 1000).
func ExpForTotal(total int64) int64 {
	if total <= 0 {
		return 0
	}
	return total / ExpPerCurrencyUnit
}

// ApplyExp returns the balance after adding delta, clamped at zero, and its tier.
func ApplyExp(exp, delta int64) (int64, Rank) {
	exp += delta
	if exp < 0 {
		exp = 0
	}
	return exp, RankFor(exp)
}
