package forecast

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/air-quality-service/internal/domain"
)

// slotHours is the spacing of synthetic samples within a day.
const slotHours = 3

// SynthesizeTrainingSet builds days*8 feature rows for a city, anchored on
// baseAQI and shaped by the city's profile. Row timestamps count back from
// now, so the calendar features follow now's location.
func SynthesizeTrainingSet(city string, baseAQI, days int, now time.Time, rng *rand.Rand) []domain.FeatureRow {
	profile := domain.ProfileFor(city)
	rows := make([]domain.FeatureRow, 0, days*(24/slotHours))

	for day := range days {
		for h := 0; h < 24; h += slotHours {
			ts := now.Add(-time.Duration(day)*24*time.Hour - time.Duration(h)*time.Hour)
			hour := ts.Hour()
			dow := domain.MondayWeekday(ts)
			month := int(ts.Month())

			aqi := float64(baseAQI)*profile.BaseMultiplier + float64(randInt(rng, -30, 30))

			switch month {
			case 11, 12, 1:
				aqi += profile.WinterIncrease
			case 6, 7, 8:
				aqi -= 20
			}

			if profile.IsTrafficHour(hour) {
				aqi += 25
			} else if hour <= 5 {
				aqi -= 15
			}

			if dow == 6 {
				aqi -= 10
			}

			temp := 25 + rng.NormFloat64()*5
			humidity := 60 + rng.NormFloat64()*15
			wind := 3 + math.Abs(rng.NormFloat64()*2)

			if humidity > 70 {
				aqi += 15
			}
			if wind > 5 {
				aqi -= 20
			}
			if temp < 15 {
				aqi += 15
			}

			aqi = domain.ClampAQI(aqi)

			rows = append(rows, domain.FeatureRow{
				Hour:      hour,
				DayOfWeek: dow,
				Month:     month,
				Temp:      temp,
				Humidity:  humidity,
				Wind:      wind,
				AQILag1:   aqi + float64(randInt(rng, -5, 5)),
				AQILag3:   aqi + float64(randInt(rng, -10, 10)),
				AQI:       aqi,
			})
		}
	}
	return rows
}

// randInt returns a uniform integer in [lo, hi).
func randInt(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo)
}
