package lap

import (
	"fmt"

	"github.com/aarondl/opt/null"
	"github.com/shopspring/decimal"
)

const noTime = "—"

// FormatLapTime renders ms as m:ss.mmm. Null values render as a dash.
func FormatLapTime(ms null.Val[int64]) string {
	v, ok := ms.Get()
	if !ok || v < 0 {
		return noTime
	}
	minutes := v / 60000
	secs := decimal.New(v%60000, -3).StringFixed(3)
	if v%60000 < 10000 {
		secs = "0" + secs
	}
	return fmt.Sprintf("%d:%s", minutes, secs)
}

// Seconds converts ms to a decimal number of seconds.
func Seconds(ms int64) decimal.Decimal {
	return decimal.New(ms, -3)
}
