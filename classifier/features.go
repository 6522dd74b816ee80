package classifier

import (
	"math"
	"math/cmplx"
	"slices"

	"github.com/RideReport/RideRecorderApp-sub003/types/prediction"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// FeatureCount is the length of the vector returned by Features.
const FeatureCount = 14

// Resample interpolates reading magnitudes onto n points spaced 1/rateHz
// apart, starting at the first reading.
func Resample(readings []prediction.AccelerometerReading, n int, rateHz float64) ([]float64, error) {
	sorted := slices.Clone(readings)
	slices.SortStableFunc(sorted, func(a, b prediction.AccelerometerReading) int {
		return a.Date.Compare(b.Date)
	})

	xs := make([]float64, 0, len(sorted))
	ys := make([]float64, 0, len(sorted))
	for _, r := range sorted {
		x := r.Date.Sub(sorted[0].Date).Seconds()
		if len(xs) > 0 && x <= xs[len(xs)-1] {
			// Interpolation needs strictly increasing abscissae.
			continue
		}
		xs = append(xs, x)
		ys = append(ys, r.Magnitude())
	}
	if len(xs) < 2 {
		return nil, ErrTooFewReadings
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, err
	}
	spacing := 1 / rateHz
	last := xs[len(xs)-1]
	out := make([]float64, n)
	for i := range out {
		out[i] = pl.Predict(math.Min(float64(i)*spacing, last))
	}
	return out, nil
}

// PowerSpectrum returns the squared magnitudes of the Hamming-windowed
// signal's FFT, DC first, up to and excluding the Nyquist bin.
func PowerSpectrum(signal []float64) []float64 {
	seq := window.Hamming(slices.Clone(signal))
	fft := fourier.NewFFT(len(seq))
	coeffs := fft.Coefficients(nil, seq)
	n := len(seq) / 2
	out := make([]float64, n)
	for i := 0; i < n && i < len(coeffs); i++ {
		a := cmplx.Abs(coeffs[i])
		out[i] = a * a
	}
	return out
}

// Features computes the basic feature vector for a regularly sampled signal.
func Features(signal []float64, rateHz float64) []float64 {
	n := len(signal)
	mean, std := stat.MeanStdDev(signal, nil)

	spectrum := PowerSpectrum(signal)
	sampleSpacing := 1 / rateHz
	below2_5 := int(math.Floor(sampleSpacing * float64(n) * 2.5))
	below2_5 = min(below2_5+1, len(spectrum))

	sorted := slices.Clone(signal)
	slices.Sort(sorted)

	return []float64{
		floats.Max(signal),
		mean,
		maxRollingMean(signal, 5),
		std,
		zeroNaN(stat.Skew(signal, nil)),
		zeroNaN(stat.ExKurtosis(signal, nil)),
		dominantPower(spectrum),
		trapezoidArea(spectrum[min(1, len(spectrum)):]),
		trapezoidArea(spectrum[min(1, len(spectrum)):below2_5]),
		stat.Quantile(0.25, stat.Empirical, sorted, nil),
		stat.Quantile(0.5, stat.Empirical, sorted, nil),
		stat.Quantile(0.75, stat.Empirical, sorted, nil),
		stat.Quantile(0.9, stat.Empirical, sorted, nil),
		spectralEntropy(spectrum[min(1, len(spectrum)):]),
	}
}

func maxRollingMean(x []float64, w int) float64 {
	if w > len(x) {
		return 0
	}
	best := math.Inf(-1)
	for i := 0; i+w <= len(x); i++ {
		best = math.Max(best, floats.Sum(x[i:i+w])/float64(w))
	}
	return best
}

func dominantPower(spectrum []float64) float64 {
	p := 0.0
	for _, v := range spectrum[min(1, len(spectrum)):] {
		p = math.Max(p, v)
	}
	return p
}

func trapezoidArea(x []float64) float64 {
	area := 0.0
	for i := 1; i < len(x); i++ {
		area += (x[i] + x[i-1]) / 2
	}
	return area
}

// spectralEntropy is the Shannon entropy, in bits, of the normalized spectrum.
func spectralEntropy(spectrum []float64) float64 {
	sum := floats.Sum(spectrum)
	if sum == 0 {
		return 0
	}
	p := make([]float64, len(spectrum))
	floats.ScaleTo(p, 1/sum, spectrum)
	return stat.Entropy(p) / math.Ln2
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
