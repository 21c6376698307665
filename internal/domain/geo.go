package domain

// Hierarchical geographic reference data. Coordinates are plain lat/lon pairs
// stored as double precision columns.

type Country struct {
	CountryID int      `json:"country_id"`
	Name      string   `json:"country_name"`
	Regions   []Region `json:"regions"`
}

type Region struct {
	RegionID int    `json:"region_id"`
	Name     string `json:"region_name"`
	Cities   []City `json:"cities"`
}

type City struct {
	ID        int     `json:"id"`
	RegionID  int     `json:"region_id"`
	Name      string  `json:"name_city"`
	TimeZone  string  `json:"time_zone"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Geolocation struct {
	RegionID  int     `json:"region_id"`
	Postcode  string  `json:"postcode"`
	Country   string  `json:"country"`
	City      string  `json:"city"`
	Street    string  `json:"street"`
	House     string  `json:"house"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
