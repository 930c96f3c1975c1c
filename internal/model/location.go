package model

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is where a pickup, issue or help request is needed.
type Location struct {
	Address     string       `json:"address"`
	City        string       `json:"city"`
	PinCode     string       `json:"pinCode"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

func (l Location) clone() Location {
	if l.Coordinates != nil {
		c := *l.Coordinates
		l.Coordinates = &c
	}
	return l
}
