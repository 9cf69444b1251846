package config

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port        int      `yaml:"port" validate:"gte=0,lte=65535"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// GTFSConfig contains GTFS static feed configuration
type GTFSConfig struct {
	StaticURL  string `yaml:"staticURL" validate:"omitempty,url"`
	StaticPath string `yaml:"staticPath"`
	CachePath  string `yaml:"cachePath"`
}

// GTFSRTConfig contains GTFS-Realtime feed configuration
type GTFSRTConfig struct {
	TripUpdatesURL      string `yaml:"tripUpdatesURL" validate:"omitempty,url"`
	VehiclePositionsURL string `yaml:"vehiclePositionsURL" validate:"omitempty,url"`
	ServiceAlertsURL    string `yaml:"serviceAlertsURL" validate:"omitempty,url"`
	APIKey              string `yaml:"apiKey"`
	APIKeyHeader        string `yaml:"apiKeyHeader"`
	MaxAgeMS            int    `yaml:"maxAgeMS" validate:"gte=0"`
}

// Feed is one GTFS + GTFS-Realtime source
type Feed struct {
	Name   string       `yaml:"name" validate:"required"`
	GTFS   GTFSConfig   `yaml:"gtfs"`
	GTFSRT GTFSRTConfig `yaml:"gtfsrt"`
}

// OBAConfig contains OneBusAway REST API configuration
type OBAConfig struct {
	BaseURL string `yaml:"baseURL" validate:"omitempty,url"`
	APIKey  string `yaml:"apiKey"`
}

// TransitConfig selects and configures the transit backend
type TransitConfig struct {
	// Backend is "oba", "gtfs" or "" for no transit data.
	Backend       string    `yaml:"backend" validate:"omitempty,oneof=oba gtfs"`
	Feed          string    `yaml:"feed"`
	TimeoutMS     int       `yaml:"timeoutMS" validate:"gte=0"`
	VehiclePollMS int       `yaml:"vehiclePollMS" validate:"gte=0"`
	OBA           OBAConfig `yaml:"oba"`
	Feeds         []Feed    `yaml:"feeds" validate:"dive"`
}

// GeocodingConfig contains reverse geocoder configuration
type GeocodingConfig struct {
	BaseURL   string `yaml:"baseURL" validate:"omitempty,url"`
	Token     string `yaml:"token"`
	Language  string `yaml:"language"`
	TimeoutMS int    `yaml:"timeoutMS" validate:"gte=0"`
}

// OSMConfig contains Overpass configuration
type OSMConfig struct {
	Enabled       bool    `yaml:"enabled"`
	OverpassURL   string  `yaml:"overpassURL" validate:"omitempty,url"`
	TimeoutMS     int     `yaml:"timeoutMS" validate:"gte=0"`
	MatchRadiusM  float64 `yaml:"matchRadiusM" validate:"gte=0"`
	NearbyRadiusM float64 `yaml:"nearbyRadiusM" validate:"gte=0"`
	MaxNearby     int     `yaml:"maxNearby" validate:"gte=0"`
}

// PhotosConfig contains Wikimedia Commons configuration
type PhotosConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CommonsURL string `yaml:"commonsURL" validate:"omitempty,url"`
	TimeoutMS  int    `yaml:"timeoutMS" validate:"gte=0"`
	RadiusM    int    `yaml:"radiusM" validate:"gte=0"`
	Limit      int    `yaml:"limit" validate:"gte=0"`
}

// CacheConfig contains the redis geocode cache configuration
type CacheConfig struct {
	RedisURL   string `yaml:"redisURL"`
	TTLSeconds int    `yaml:"ttlSeconds" validate:"gte=0"`
}

// StoreConfig contains durable place storage configuration
type StoreConfig struct {
	Driver string `yaml:"driver" validate:"omitempty,oneof=sqlite postgres"`
	DSN    string `yaml:"dsn"`
}

// CameraConfig contains camera guard configuration
type CameraConfig struct {
	DebounceMS   int     `yaml:"debounceMS" validate:"gte=0"`
	FlyTimeoutMS int     `yaml:"flyTimeoutMS" validate:"gte=0"`
	SelectZoom   float64 `yaml:"selectZoom" validate:"gte=0,lte=24"`
	FitPadding   float64 `yaml:"fitPadding" validate:"gte=0"`
}

// LoggingConfig contains log output configuration
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Transit   TransitConfig   `yaml:"transit"`
	Geocoding GeocodingConfig `yaml:"geocoding"`
	OSM       OSMConfig       `yaml:"osm"`
	Photos    PhotosConfig    `yaml:"photos"`
	Cache     CacheConfig     `yaml:"cache"`
	Store     StoreConfig     `yaml:"store"`
	Camera    CameraConfig    `yaml:"camera"`
	Logging   LoggingConfig   `yaml:"logging"`
}
