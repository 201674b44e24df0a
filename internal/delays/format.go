// Package delays turns raw ZTM departures into display-ready delay records.
package delays

import (
	"fmt"

	"urbanflow/internal/ztm"
)

// OnTimeLabel is shown for a departure with no delay.
const OnTimeLabel = "Punktualnie"

// SlightDelayLimit is the largest delay, in seconds, still classed as slight.
const SlightDelayLimit = 180

// Severity buckets a delay for display.
type Severity string

const (
	OnTime Severity = "on-time"
	Slight Severity = "slight"
	Late   Severity = "late"
)

// FormattedDelay is the client-facing view of a departure.
type FormattedDelay struct {
	ID              string   `json:"id"`
	RouteID         int      `json:"routeId"`
	RouteShortName  string   `json:"routeShortName"`
	Headsign        string   `json:"headsign"`
	TheoreticalTime string   `json:"theoreticalTime"`
	EstimatedTime   string   `json:"estimatedTime"`
	DelayInSeconds  int      `json:"delayInSeconds"`
	DelayFormatted  string   `json:"delayFormatted"`
	Severity        Severity `json:"severity"`
	Status          string   `json:"status"`
	VehicleCode     *int     `json:"vehicleCode"`
}

// FormatDelay converts a departure. A missing delay is treated as zero.
func FormatDelay(d ztm.Departure) FormattedDelay {
	secs := 0
	if d.DelayInSeconds != nil {
		secs = *d.DelayInSeconds
	}
	return FormattedDelay{
		ID:              d.ID,
		RouteID:         d.RouteID,
		RouteShortName:  d.RouteShortName,
		Headsign:        d.Headsign,
		TheoreticalTime: d.TheoreticalTime,
		EstimatedTime:   d.EstimatedTime,
		DelayInSeconds:  secs,
		DelayFormatted:  FormatDelayTime(secs),
		Severity:        Classify(secs),
		Status:          d.Status,
		VehicleCode:     d.VehicleCode,
	}
}

// FormatDelayTime renders a signed delay as "+2 min", "+1 min 30 s", "-45 s"
// or OnTimeLabel for zero.
func FormatDelayTime(seconds int) string {
	if seconds == 0 {
		return OnTimeLabel
	}

	abs := seconds
	sign := "+"
	if seconds < 0 {
		abs = -seconds
		sign = "-"
	}
	m, s := abs/60, abs%60

	var body string
	switch {
	case m > 0 && s > 0:
		body = fmt.Sprintf("%d min %d s", m, s)
	case m > 0:
		body = fmt.Sprintf("%d min", m)
	default:
		body = fmt.Sprintf("%d s", s)
	}
	return sign + body
}

// Classify maps a delay in seconds to its severity.
// Early departures count as on time.
func Classify(seconds int) Severity {
	switch {
	case seconds <= 0:
		return OnTime
	case seconds <= SlightDelayLimit:
		return Slight
	default:
		return Late
	}
}
