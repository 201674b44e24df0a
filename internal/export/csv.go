// Package export writes stop and delay data as CSV.
package export

import (
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"urbanflow/internal/delays"
	"urbanflow/internal/ztm"
)

// StopCSV is one row of the exported stop list. Columns follow GTFS stops.txt
// naming where an equivalent exists.
type StopCSV struct {
	ID        int     `csv:"stop_id"`
	Code      string  `csv:"stop_code"`
	Name      string  `csv:"stop_name"`
	Desc      string  `csv:"stop_desc"`
	Lat       float64 `csv:"stop_lat"`
	Lon       float64 `csv:"stop_lon"`
	ZoneID    string  `csv:"zone_id"`
	ZoneName  string  `csv:"zone_name"`
	OnDemand  int     `csv:"on_demand"`
	Depot     int     `csv:"depot"`
	ValidFrom string  `csv:"activation_date"`
}

// DelayCSV is one row of an exported delay board.
type DelayCSV struct {
	StopID          int    `csv:"stop_id"`
	ID              string `csv:"departure_id"`
	Route           string `csv:"route"`
	Headsign        string `csv:"headsign"`
	TheoreticalTime string `csv:"theoretical_time"`
	EstimatedTime   string `csv:"estimated_time"`
	DelaySeconds    int    `csv:"delay_seconds"`
	Delay           string `csv:"delay"`
	Severity        string `csv:"severity"`
	Status          string `csv:"status"`
}

// WriteStops writes stops as CSV with a header row.
func WriteStops(w io.Writer, stops []ztm.Stop) error {
	rows := make([]*StopCSV, 0, len(stops))
	for _, s := range stops {
		row := &StopCSV{
			ID:        s.StopID,
			Code:      s.StopCode,
			Name:      s.StopName,
			Desc:      s.StopDesc,
			Lat:       s.StopLat,
			Lon:       s.StopLon,
			ZoneName:  s.ZoneName,
			OnDemand:  s.OnDemand,
			Depot:     s.Depot,
			ValidFrom: s.ActivationDate,
		}
		if s.ZoneID != nil {
			row.ZoneID = strconv.Itoa(*s.ZoneID)
		}
		rows = append(rows, row)
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return errors.Wrapf(err, "writing %d stops", len(rows))
	}
	return nil
}

// WriteDelays writes the delays of one stop as CSV with a header row.
func WriteDelays(w io.Writer, stopID int, ds []delays.FormattedDelay) error {
	rows := make([]*DelayCSV, 0, len(ds))
	for _, d := range ds {
		rows = append(rows, &DelayCSV{
			StopID:          stopID,
			ID:              d.ID,
			Route:           d.RouteShortName,
			Headsign:        d.Headsign,
			TheoreticalTime: d.TheoreticalTime,
			EstimatedTime:   d.EstimatedTime,
			DelaySeconds:    d.DelayInSeconds,
			Delay:           d.DelayFormatted,
			Severity:        string(d.Severity),
			Status:          d.Status,
		})
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return errors.Wrapf(err, "writing delays for stop %d", stopID)
	}
	return nil
}

// ReadStops parses a CSV produced by WriteStops.
func ReadStops(r io.Reader) ([]*StopCSV, error) {
	var rows []*StopCSV
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, errors.Wrap(err, "unmarshaling stops csv")
	}
	return rows, nil
}
