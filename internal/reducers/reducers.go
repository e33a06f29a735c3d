// Package reducers maps API statistic names onto backend reducer names.
package reducers

// NoData marks days the backend had no usable value for.
const NoData = -999.0

var byStat = map[string]string{
	"mean":   "mean",
	"min":    "min",
	"max":    "max",
	"median": "median",
	"sum":    "sum",
	"stddev": "stdDev",
	"std":    "stdDev",
}

// ForStat returns the backend reducer for a statistic name. Unknown names
// fall back to mean; route-level validation rejects them before we get here.
func ForStat(stat string) string {
	if r, ok := byStat[stat]; ok {
		return r
	}
	return "mean"
}

// Known reports whether stat names a supported statistic.
func Known(stat string) bool {
	_, ok := byStat[stat]
	return ok
}

// Stats lists the canonical statistic names accepted by the API.
func Stats() []string {
	return []string{"mean", "min", "max", "median", "sum", "stddev"}
}
