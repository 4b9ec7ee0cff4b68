package flights

import (
	"fmt"
	"time"
)

const isoDate = "2006-01-02"

type datePair struct {
	dep string
	ret string
}

// datePairs enumerates every (departure, return) pair consistent with
// the trip length inside the window: one pair per departure day, with
// the return no later than End.
func datePairs(q Query) ([]datePair, error) {
	if q.TripLength <= 0 {
		return nil, fmt.Errorf("trip length must be positive, got %d", q.TripLength)
	}

	start, err := time.Parse(isoDate, q.Start)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", q.Start, err)
	}
	end, err := time.Parse(isoDate, q.End)
	if err != nil {
		return nil, fmt.Errorf("parse end date %q: %w", q.End, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s before start date %s", q.End, q.Start)
	}

	trip := time.Duration(q.TripLength) * 24 * time.Hour
	var pairs []datePair
	for dep := start; !dep.Add(trip).After(end); dep = dep.AddDate(0, 0, 1) {
		pairs = append(pairs, datePair{
			dep: dep.Format(isoDate),
			ret: dep.Add(trip).Format(isoDate),
		})
	}
	return pairs, nil
}
