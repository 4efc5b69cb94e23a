package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat     float64
	Lon     float64
	Name    string
	Country string
	State   string
}

// Geocoder resolves a free-text city name to coordinates.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, city string) (GeocodingResult, error)
}

// AirQualityFeed returns the latest observed reading for a city.
// Implementations return an error on any transport or payload problem;
// fallback selection is the caller's job.
type AirQualityFeed interface {
	CurrentReading(ctx context.Context, city string) (AQIReading, error)
}

// WeatherFeed returns an ordered 3-hourly weather forecast for a city.
type WeatherFeed interface {
	Forecast(ctx context.Context, city string) ([]WeatherSample, error)
}
