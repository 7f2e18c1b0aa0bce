package health

import "strings"

// Canonical metric types tracked by the platform.
const (
	MetricHeartRateResting = "heart_rate_resting"
	MetricHeartRateSleep   = "heart_rate_sleep"
	MetricHRVSDNN          = "heart_rate_variability_sdnn"
	MetricHRVRMSSD         = "heart_rate_variability_rmssd"
	MetricSteps            = "steps"
	MetricActiveDuration   = "active_duration"
	MetricSleepDuration    = "sleep_duration"
	MetricSleepDeep        = "sleep_deep_duration"
	MetricSleepREM         = "sleep_rem_duration"
	MetricSleepLight       = "sleep_light_duration"
	MetricWeight           = "weight"
	MetricBMI              = "body_mass_index"
	MetricBodyFat          = "body_fat"
	MetricOxygenSaturation = "oxygen_saturation"
	MetricBPSystolic       = "blood_pressure_systolic"
	MetricBPDiastolic      = "blood_pressure_diastolic"
	MetricRespiratoryRate  = "respiratory_rate"
	MetricBloodGlucose     = "blood_glucose"
)

// metricAliases maps user-friendly metric names to canonical metric types.
var metricAliases = map[string]string{
	"heart rate":         MetricHeartRateResting,
	"heartrate":          MetricHeartRateResting,
	"heart_rate":         MetricHeartRateResting,
	"resting heart rate": MetricHeartRateResting,
	"hr":                 MetricHeartRateResting,
	"heart rate sleep":   MetricHeartRateSleep,
	"sleep heart rate":   MetricHeartRateSleep,

	"hrv":                    MetricHRVSDNN,
	"heart rate variability": MetricHRVSDNN,
	"hrv sdnn":               MetricHRVSDNN,
	"hrv rmssd":              MetricHRVRMSSD,

	"sleep":          MetricSleepDuration,
	"sleep time":     MetricSleepDuration,
	"hours of sleep": MetricSleepDuration,
	"deep sleep":     MetricSleepDeep,
	"rem sleep":      MetricSleepREM,
	"light sleep":    MetricSleepLight,

	"step count":  MetricSteps,
	"daily steps": MetricSteps,
	"walking":     MetricSteps,
	"active time": MetricActiveDuration,
	"activity":    MetricActiveDuration,
	"exercise":    MetricActiveDuration,

	"weight":          MetricWeight,
	"body weight":     MetricWeight,
	"bmi":             MetricBMI,
	"body mass index": MetricBMI,
	"body fat":        MetricBodyFat,
	"fat percentage":  MetricBodyFat,

	"oxygen":           MetricOxygenSaturation,
	"o2":               MetricOxygenSaturation,
	"spo2":             MetricOxygenSaturation,
	"blood pressure":   MetricBPSystolic,
	"systolic":         MetricBPSystolic,
	"diastolic":        MetricBPDiastolic,
	"respiratory rate": MetricRespiratoryRate,
	"breathing rate":   MetricRespiratoryRate,
	"glucose":          MetricBloodGlucose,
	"blood sugar":      MetricBloodGlucose,
}

// NormalizeMetricName maps a user-provided metric name to its canonical
// metric type. Unknown names pass through unchanged since they may already
// be canonical.
func NormalizeMetricName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := metricAliases[normalized]; ok {
		return canonical
	}
	return name
}
