package domain

// Monitor is the metadata of one inverter monitor.
// Corresponds to monitors table in PostgreSQL.
type Monitor struct {
	MonitorID string  // monitor identifier
	SiteID    string  // owning site
	PVSizeW   float64 // rated DC capacity in W
	Latitude  float64 // degrees, north positive
	Longitude float64 // degrees, east positive
}

// Site is the metadata of one installation site.
// Corresponds to sites table in PostgreSQL.
type Site struct {
	SiteID   string
	Timezone string // IANA zone name, e.g. Australia/Sydney
	Name     string
}

// DailyGeneration holds the daily expected and clear-sky modelled generation of a site.
// Corresponds to daily_generation table in PostgreSQL.
type DailyGeneration struct {
	SiteID   string
	Date     Date
	Expected *float64 // generation expected from measured weather, Wh
	ClearSky *float64 // generation of the cloudless model, Wh
}
