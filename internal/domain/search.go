package domain

// Destination is one catalog entry: a city we consider flying to.
type Destination struct {
	City    string
	Country string
	Airport string
	Lat     float64
	Lon     float64
}

// Offer is a normalized round-trip price from one provider for one
// destination. Departure/Return are concrete ISO dates inside the
// requested window.
type Offer struct {
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	Stops     int     `json:"stops"`
	Airline   string  `json:"airline"`
	Departure string  `json:"departure"`
	Return    string  `json:"return"`
	Provider  string  `json:"provider"`
}

// Weather is the aggregated forecast over one trip's date range.
type Weather struct {
	AvgTempC          float64 `json:"avg_temp_c"`
	AvgPrecipMMPerDay float64 `json:"avg_precip_mm_per_day"`
}

// DestinationResult is the representative offer for one destination
// plus its weather and final score. One per destination that yielded
// at least one usable offer.
type DestinationResult struct {
	City              string  `json:"city"`
	Country           string  `json:"country"`
	Airport           string  `json:"airport"`
	AvgTempC          float64 `json:"avg_temp_c"`
	AvgPrecipMMPerDay float64 `json:"avg_precip_mm_per_day"`
	FlightPrice       float64 `json:"flight_price"`
	Currency          string  `json:"currency"`
	TotalStops        int     `json:"total_stops"`
	Airlines          string  `json:"airlines"`
	BestDeparture     string  `json:"best_departure"`
	BestReturn        string  `json:"best_return"`
	Provider          string  `json:"provider"`
	Score             float64 `json:"score"`
}

// SearchResult is the terminal payload of a successful job.
// Results is the ranked top-N; an empty list is a valid outcome.
type SearchResult struct {
	Meta    SearchParams        `json:"meta"`
	Results []DestinationResult `json:"results"`
}
