package pricing

import "strconv"

// FormatPrice renders a mesos amount in the compact M/K notation used on the market site.
//
//	999       -> "999"
//	1500      -> "1K500"
//	2000      -> "2K"
//	2500000   -> "2M500K"
func FormatPrice(price int64) string {
	switch {
	case price >= 1_000_000:
		rest := price % 1_000_000
		if rest < 1000 {
			return strconv.FormatInt(price/1_000_000, 10) + "M"
		}
		return strconv.FormatInt(price/1_000_000, 10) + "M" + strconv.FormatInt(rest/1000, 10) + "K"
	case price >= 1000:
		rest := price % 1000
		if rest == 0 {
			return strconv.FormatInt(price/1000, 10) + "K"
		}
		return strconv.FormatInt(price/1000, 10) + "K" + strconv.FormatInt(rest, 10)
	default:
		return strconv.FormatInt(price, 10)
	}
}
