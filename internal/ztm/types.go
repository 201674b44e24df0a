package ztm

// StopCatalog is the bulk stops feed: one entry per service date, keyed "YYYY-MM-DD".
type StopCatalog map[string]StopDay

// StopDay is the stop list published for a single service date.
type StopDay struct {
	LastUpdate string `json:"lastUpdate"`
	Stops      []Stop `json:"stops"`
}

// Stop is a single stop record as published by ZTM.
// Flags are 0/1 integers upstream; null decodes to 0.
type Stop struct {
	StopID           int     `json:"stopId"`
	StopCode         string  `json:"stopCode"`
	StopName         string  `json:"stopName"`
	StopShortName    string  `json:"stopShortName"`
	StopDesc         string  `json:"stopDesc"`
	SubName          string  `json:"subName"`
	Date             string  `json:"date"`
	ZoneID           *int    `json:"zoneId"`
	ZoneName         string  `json:"zoneName"`
	Virtual          int     `json:"virtual"`
	NonPassenger     int     `json:"nonpassenger"`
	Depot            int     `json:"depot"`
	TicketZoneBorder int     `json:"ticketZoneBorder"`
	OnDemand         int     `json:"onDemand"`
	ActivationDate   string  `json:"activationDate"`
	StopLat          float64 `json:"stopLat"`
	StopLon          float64 `json:"stopLon"`
}

// DeparturesResponse is the live departures feed for one stop.
type DeparturesResponse struct {
	LastUpdate string      `json:"lastUpdate"`
	Departures []Departure `json:"departures"`
}

// Departure is a single live departure estimate.
type Departure struct {
	ID                     string `json:"id"`
	DelayInSeconds         *int   `json:"delayInSeconds"`
	EstimatedTime          string `json:"estimatedTime"`
	Headsign               string `json:"headsign"`
	RouteID                int    `json:"routeId"`
	RouteShortName         string `json:"routeShortName"`
	TripID                 int    `json:"tripId"`
	Status                 string `json:"status"` // "REALTIME" or "SCHEDULED"
	TheoreticalTime        string `json:"theoreticalTime"`
	Timestamp              string `json:"timestamp"`
	Trip                   int    `json:"trip"`
	VehicleCode            *int   `json:"vehicleCode"`
	VehicleID              *int   `json:"vehicleId"`
	VehicleService         string `json:"vehicleService"`
	ScheduledTripStartTime string `json:"scheduledTripStartTime"`
}
