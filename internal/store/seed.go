package store

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/axion-health/insight-engine/internal/health"
)

// metricSpec describes one mock biomarker stream: a daily value drawn
// uniformly from [lo, hi], rendered with the given precision.
type metricSpec struct {
	metricType string
	unit       string
	lo, hi     float64
	decimals   int
}

var seedSpecs = []metricSpec{
	// Activity
	{health.MetricSteps, "steps", 3000, 12000, 0},
	{"floors_climbed", "floors", 5, 25, 0},
	{health.MetricActiveDuration, "minutes", 30, 240, 0},
	{"active_energy_burned", "kcal", 300, 800, 0},
	{"total_energy_burned", "kcal", 2000, 3000, 0},

	// Body
	{health.MetricWeight, "kg", 70, 85, 1},
	{health.MetricBMI, "kg/m²", 22, 27, 1},
	{health.MetricBodyFat, "%", 15, 25, 1},

	// Sleep
	{health.MetricSleepDuration, "hours", 6.5, 9.0, 1},
	{"sleep_interruptions", "count", 0, 5, 0},
	{health.MetricSleepREM, "hours", 1, 2.5, 1},
	{health.MetricSleepDeep, "hours", 1, 2, 1},
	{health.MetricSleepLight, "hours", 2, 4, 1},
	{"sleep_efficiency", "%", 80, 95, 1},

	// Vitals
	{"heart_rate", "bpm", 60, 85, 0},
	{health.MetricHeartRateResting, "bpm", 55, 70, 0},
	{health.MetricHeartRateSleep, "bpm", 50, 65, 0},
	{health.MetricHRVSDNN, "ms", 20, 60, 0},
	{health.MetricHRVRMSSD, "ms", 15, 80, 0},
	{health.MetricRespiratoryRate, "breaths/min", 12, 20, 0},
	{health.MetricOxygenSaturation, "%", 95, 99, 1},
	{"vo2_max", "mL/kg/min", 35, 55, 1},
	{health.MetricBloodGlucose, "mg/dL", 80, 120, 0},
	{health.MetricBPSystolic, "mmHg", 110, 135, 0},
	{health.MetricBPDiastolic, "mmHg", 70, 85, 0},
	{"body_temperature_basal", "celsius", 36.5, 37.5, 1},
}

// SeedDemoData inserts `days` days of mock biomarker readings for the user,
// one reading per metric per day ending today. The generator is seeded so
// repeated runs against a fresh database produce identical data.
func (s *SQLiteStore) SeedDemoData(userID int64, days int, seed int64) (int, error) {
	rng := rand.New(rand.NewSource(seed))
	end := time.Now().UTC().Truncate(24 * time.Hour)

	inserted := 0
	for i := days - 1; i >= 0; i-- {
		day := end.AddDate(0, 0, -i)
		for _, spec := range seedSpecs {
			v := spec.lo + rng.Float64()*(spec.hi-spec.lo)
			var value string
			if spec.decimals == 0 {
				value = strconv.Itoa(int(v))
			} else {
				value = strconv.FormatFloat(v, 'f', spec.decimals, 64)
			}
			m := HealthMetric{
				Timestamp:  day.Add(8 * time.Hour),
				MetricType: spec.metricType,
				Value:      value,
				Unit:       spec.unit,
				Source:     "mock",
			}
			if err := s.InsertMetric(userID, m); err != nil {
				return inserted, fmt.Errorf("failed to seed %s for day %s: %w", spec.metricType, day.Format("2006-01-02"), err)
			}
			inserted++
		}
	}
	return inserted, nil
}
