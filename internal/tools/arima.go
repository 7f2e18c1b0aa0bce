package tools

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// errNonConverged marks an ARIMA fit that produced an unusable model; the
// forecaster falls back to a moving average when it sees this.
var errNonConverged = errors.New("arima fit did not converge")

// arimaModel is a fitted ARIMA(1,1,1): one order of differencing with an
// ARMA(1,1) on the differenced series. Fitting uses the Hannan-Rissanen
// two-stage regression: a long autoregression estimates the innovations,
// then the AR and MA coefficients come from an ordinary least-squares
// regression on the lagged series and lagged innovations.
type arimaModel struct {
	phi    float64 // AR(1) coefficient
	theta  float64 // MA(1) coefficient
	mu     float64 // mean of the differenced series
	sigma2 float64 // innovation variance

	lastValue float64 // last observed level
	lastDiff  float64 // last centered difference
	lastResid float64 // last innovation estimate
}

func fitARIMA111(values []float64) (*arimaModel, error) {
	if len(values) < 8 {
		return nil, fmt.Errorf("%w: %d observations", errNonConverged, len(values))
	}

	// Difference once to stationarity.
	diffs := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		diffs[i-1] = values[i] - values[i-1]
	}

	mu := stat.Mean(diffs, nil)
	centered := make([]float64, len(diffs))
	for i, d := range diffs {
		centered[i] = d - mu
	}

	// Stage 1: long AR regression to estimate the innovation sequence.
	p := len(centered) / 3
	if p > 10 {
		p = 10
	}
	if p < 1 {
		p = 1
	}
	arCoeffs, err := fitAR(centered, p)
	if err != nil {
		return nil, err
	}
	innovations := make([]float64, len(centered))
	for t := p; t < len(centered); t++ {
		pred := 0.0
		for i, a := range arCoeffs {
			pred += a * centered[t-1-i]
		}
		innovations[t] = centered[t] - pred
	}

	// Stage 2: regress on the lagged series and lagged innovations.
	start := p + 1
	rows := len(centered) - start
	if rows < 4 {
		return nil, fmt.Errorf("%w: %d usable rows", errNonConverged, rows)
	}
	design := mat.NewDense(rows, 2, nil)
	response := mat.NewVecDense(rows, nil)
	for t := start; t < len(centered); t++ {
		design.Set(t-start, 0, centered[t-1])
		design.Set(t-start, 1, innovations[t-1])
		response.SetVec(t-start, centered[t])
	}

	var qr mat.QR
	qr.Factorize(design)
	var coef mat.Dense
	if err := qr.SolveTo(&coef, false, response); err != nil {
		return nil, fmt.Errorf("%w: %v", errNonConverged, err)
	}
	phi := coef.At(0, 0)
	theta := coef.At(1, 0)

	if math.Abs(phi) >= 0.999 || math.IsNaN(phi) || math.IsNaN(theta) {
		return nil, fmt.Errorf("%w: phi=%.4f theta=%.4f", errNonConverged, phi, theta)
	}

	// Recompute innovations under the fitted ARMA(1,1) and keep the final
	// state for forecasting.
	resid := 0.0
	var sumSq float64
	for t := 1; t < len(centered); t++ {
		e := centered[t] - phi*centered[t-1] - theta*resid
		resid = e
		sumSq += e * e
	}
	sigma2 := sumSq / float64(len(centered)-1)
	if math.IsNaN(sigma2) || math.IsInf(sigma2, 0) {
		return nil, fmt.Errorf("%w: bad innovation variance", errNonConverged)
	}

	return &arimaModel{
		phi:       phi,
		theta:     theta,
		mu:        mu,
		sigma2:    sigma2,
		lastValue: values[len(values)-1],
		lastDiff:  centered[len(centered)-1],
		lastResid: resid,
	}, nil
}

// fitAR estimates AR(p) coefficients by least squares.
func fitAR(series []float64, p int) ([]float64, error) {
	rows := len(series) - p
	if rows < p+1 {
		return nil, fmt.Errorf("%w: AR design too short", errNonConverged)
	}
	design := mat.NewDense(rows, p, nil)
	response := mat.NewVecDense(rows, nil)
	for t := p; t < len(series); t++ {
		for i := 0; i < p; i++ {
			design.Set(t-p, i, series[t-1-i])
		}
		response.SetVec(t-p, series[t])
	}

	var qr mat.QR
	qr.Factorize(design)
	var coef mat.Dense
	if err := qr.SolveTo(&coef, false, response); err != nil {
		return nil, fmt.Errorf("%w: %v", errNonConverged, err)
	}

	coeffs := make([]float64, p)
	for i := range coeffs {
		coeffs[i] = coef.At(i, 0)
		if math.IsNaN(coeffs[i]) {
			return nil, fmt.Errorf("%w: NaN AR coefficient", errNonConverged)
		}
	}
	return coeffs, nil
}

// forecast projects h steps ahead, returning point forecasts and the 95%
// interval half-widths derived from the cumulative psi weights of the
// integrated process.
func (m *arimaModel) forecast(h int) (points []float64, halfWidths []float64) {
	points = make([]float64, h)
	halfWidths = make([]float64, h)

	// Point path: forecast the differenced series, then integrate.
	level := m.lastValue
	diff := m.lastDiff
	for k := 0; k < h; k++ {
		if k == 0 {
			diff = m.phi*diff + m.theta*m.lastResid
		} else {
			diff = m.phi * diff
		}
		level += m.mu + diff
		points[k] = level
	}

	// Psi weights of ARMA(1,1): psi_0 = 1, psi_j = phi^(j-1) (phi + theta).
	// The integrated forecast variance at horizon h sums the squared
	// cumulative weights.
	cumulative := 1.0
	psiSum := 1.0
	varSum := 0.0
	for k := 0; k < h; k++ {
		varSum += cumulative * cumulative
		halfWidths[k] = 1.96 * math.Sqrt(m.sigma2*varSum)

		psi := (m.phi + m.theta) * math.Pow(m.phi, float64(k))
		psiSum += psi
		cumulative = psiSum
	}
	return points, halfWidths
}
