package delays

import "math"

// Summary aggregates the delays of one stop.
type Summary struct {
	Total           int     `json:"total"`
	OnTime          int     `json:"onTime"`
	Slight          int     `json:"slight"`
	Late            int     `json:"late"`
	OnTimePercent   float64 `json:"onTimePercent"`
	AvgDelaySeconds float64 `json:"avgDelaySeconds"`
	MaxDelaySeconds int     `json:"maxDelaySeconds"`
	WorstRoute      string  `json:"worstRoute,omitempty"`
}

// Summarize counts delays per severity. Early departures count as zero
// in the average.
func Summarize(delays []FormattedDelay) Summary {
	sum := Summary{Total: len(delays)}
	if len(delays) == 0 {
		return sum
	}

	total := 0
	for _, d := range delays {
		switch d.Severity {
		case OnTime:
			sum.OnTime++
		case Slight:
			sum.Slight++
		case Late:
			sum.Late++
		}
		if d.DelayInSeconds > 0 {
			total += d.DelayInSeconds
		}
		if d.DelayInSeconds > sum.MaxDelaySeconds {
			sum.MaxDelaySeconds = d.DelayInSeconds
			sum.WorstRoute = d.RouteShortName
		}
	}

	sum.OnTimePercent = round1(float64(sum.OnTime) / float64(sum.Total) * 100)
	sum.AvgDelaySeconds = round1(float64(total) / float64(sum.Total))
	return sum
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
