package health

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Reading is a single raw measurement as returned by the metric store.
// Value is kept as text because upstream device syncs deliver composite
// readings (e.g. "120/80" for blood pressure) alongside plain numbers.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Value     string    `json:"value"`
	Unit      string    `json:"unit"`
}

// Point is a normalized numeric sample.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricSeries is one user's normalized time series for a single metric type.
// Timestamps are non-decreasing and values are numeric after Normalize.
type MetricSeries struct {
	MetricType string  `json:"metric_type"`
	Unit       string  `json:"unit"`
	Points     []Point `json:"points"`
}

// Normalize converts raw readings into an ordered numeric series.
// Composite values are split by metric type (systolic takes the first
// component, diastolic the second), unparseable readings are dropped, and
// readings sharing a timestamp are averaged rather than summed.
func Normalize(metricType string, readings []Reading) MetricSeries {
	series := MetricSeries{MetricType: metricType}

	type acc struct {
		sum   float64
		count int
	}
	byTime := make(map[time.Time]*acc)
	var order []time.Time

	for _, r := range readings {
		value, ok := parseValue(metricType, r.Value)
		if !ok {
			continue
		}
		if series.Unit == "" {
			series.Unit = r.Unit
		}
		ts := r.Timestamp.UTC()
		if a, seen := byTime[ts]; seen {
			a.sum += value
			a.count++
		} else {
			byTime[ts] = &acc{sum: value, count: 1}
			order = append(order, ts)
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	series.Points = make([]Point, 0, len(order))
	for _, ts := range order {
		a := byTime[ts]
		series.Points = append(series.Points, Point{Timestamp: ts, Value: a.sum / float64(a.count)})
	}
	return series
}

// DailyBuckets averages the series into one value per UTC calendar day,
// returned in chronological order.
func (s MetricSeries) DailyBuckets() ([]time.Time, []float64) {
	type acc struct {
		sum   float64
		count int
	}
	byDay := make(map[time.Time]*acc)
	var order []time.Time

	for _, p := range s.Points {
		day := p.Timestamp.Truncate(24 * time.Hour)
		if a, seen := byDay[day]; seen {
			a.sum += p.Value
			a.count++
		} else {
			byDay[day] = &acc{sum: p.Value, count: 1}
			order = append(order, day)
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	values := make([]float64, len(order))
	for i, day := range order {
		a := byDay[day]
		values[i] = a.sum / float64(a.count)
	}
	return order, values
}

// Values returns the numeric samples in order.
func (s MetricSeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

func parseValue(metricType, raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	// Composite readings like "120/80": pick the component the metric names.
	if strings.Contains(raw, "/") {
		parts := strings.SplitN(raw, "/", 2)
		component := parts[0]
		if strings.Contains(metricType, "diastolic") {
			component = parts[1]
		}
		raw = strings.TrimSpace(component)
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
