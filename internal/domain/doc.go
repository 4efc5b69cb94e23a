// Package domain models air-quality readings, AQI forecasts, and image-based
// pollution estimates for Indian metro areas (Delhi NCR focus).
//
// # Data Sources
//
// Current readings come from the World Air Quality Index (WAQI) city feed at
// https://api.waqi.info/feed/<city>/. When WAQI is unreachable or returns a
// non-"ok" status, the OpenWeather geocoding and air-pollution APIs are used
// instead and the AQI is derived from the PM2.5 concentration. Weather
// forecasts come from the OpenWeather 5-day/3-hour forecast endpoint.
//
// # AQI Conventions
//
// AQI is an integer on the 0–500 scale. Every reading and estimate is clamped
// to that range. PM2.5 is converted with the US EPA piecewise-linear
// breakpoint table (see [AQIFromPM25]); the interpolated value is truncated,
// not rounded, so 10 µg/m³ maps to 41.
//
// Forecast categories follow the Indian national AQI bands:
//
//	≤50 Good | ≤100 Satisfactory | ≤200 Moderate | ≤300 Poor | ≤400 Very Poor | >400 Severe
//
// Image estimates use a coarser four-level health alert:
//
//	≤100 LOW | ≤200 MODERATE | ≤300 HIGH | >300 SEVERE
//
// Boundary values always fall into the lower band.
//
// # City Profiles
//
// Training data for the per-city regressor is synthesized from a small table
// of city profiles (baseline multiplier, winter increase, rush hours). City
// names are matched case-insensitively; unknown cities use a generic profile.
// See [ProfileFor].
//
// # Fallbacks
//
// Readings and estimates carry explicit fallback markers ([AQIReading.Fallback],
// [ImagePollutionEstimate.Degraded]) so callers can tell substituted values
// from observed ones without inspecting logs.
package domain
