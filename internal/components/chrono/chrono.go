package chrono

import "time"

// API is the source of wall clock time for anything that depends on dates.
//
// note: fault injection point
type API interface {
	Now() time.Time
	Location() *time.Location
}

// StandardImpl reads the system clock and converts it to the portal's timezone.
type StandardImpl struct {
	location *time.Location
}

// NewStandardImpl loads the timezone the portal reports dates in.
// Servers are frequently hosted in another region, which would shift
// Year()/Month() around midnight if the local zone was used.
func NewStandardImpl() (StandardImpl, error) {
	location, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

// FixedImpl always returns the same instant.
type FixedImpl struct {
	At time.Time
}

func (f FixedImpl) Now() time.Time {
	return f.At
}

func (f FixedImpl) Location() *time.Location {
	return f.At.Location()
}
