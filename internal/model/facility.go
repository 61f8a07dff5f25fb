package model

// Facility is a read-only projection of an elderly_service or health_center row
type Facility struct {
	ID       int64    `json:"id" db:"id"`
	Domain   Domain   `json:"-" db:"-"`
	District *string  `json:"district,omitempty" db:"district"`
	Street   *string  `json:"street,omitempty" db:"street"`
	Name     *string  `json:"name,omitempty" db:"name"`
	Address  *string  `json:"address,omitempty" db:"address"`
	Beds     *int     `json:"beds,omitempty" db:"beds"`
	Type     *string  `json:"type,omitempty" db:"type"` // 运营方式, elderly only
	Phone    *string  `json:"phone,omitempty" db:"phone"`
	Lng      *float64 `json:"lng,omitempty" db:"lng"`
	Lat      *float64 `json:"lat,omitempty" db:"lat"`
}

// HasCoordinates reports whether both longitude and latitude are known
func (f Facility) HasCoordinates() bool {
	return f.Lng != nil && f.Lat != nil
}

// RankedFacility is a facility plus its distance to the reference point, if one was given
type RankedFacility struct {
	Facility
	Distance *float64 `json:"distance,omitempty"` // meters
}

// GeoPoint is a WGS84 longitude/latitude pair
type GeoPoint struct {
	Lng float64
	Lat float64
}

// Valid reports whether the point lies inside the WGS84 ranges
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
