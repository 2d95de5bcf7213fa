// Package classifier implements a sample-weighted multinomial logistic
// regression fitted with L-BFGS.
package classifier

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

var (
	// ErrTooFewClasses is returned when fewer than two classes are present.
	ErrTooFewClasses = errors.New("need at least two classes")
	// ErrDimension is returned when a vector does not match the model width.
	ErrDimension = errors.New("feature dimension mismatch")
)

// Options controls fitting.
type Options struct {
	// MaxIter caps L-BFGS major iterations.
	MaxIter int
	// C is the inverse L2 strength with the same meaning as in scikit-learn.
	C float64
	// Balanced multiplies each sample weight by n/(K*count_k) of its class.
	Balanced bool
	// Tolerance stops the solver once the gradient's infinity norm drops below it.
	Tolerance float64
}

// DefaultOptions returns the settings used by the trainer.
func DefaultOptions() Options {
	return Options{
		MaxIter:   2000,
		C:         1.0,
		Balanced:  true,
		Tolerance: 1e-6,
	}
}

// Model is a fitted classifier. Class k is the k-th entry of the artifact's action list.
type Model struct {
	Classes    int         `json:"classes"`
	Features   int         `json:"features"`
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Iterations int         `json:"iterations"`
}

// Fit trains on rows X with labels y in [0, classes) and per-row weights w.
// Every class index must appear at least once.
func Fit(X [][]float64, y []int, w []float64, classes int, opts Options) (*Model, error) {
	n := len(X)
	if n == 0 {
		return nil, errors.New("no training rows")
	}
	if len(y) != n || len(w) != n {
		return nil, fmt.Errorf("rows=%d labels=%d weights=%d", n, len(y), len(w))
	}
	if classes < 2 {
		return nil, ErrTooFewClasses
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultOptions().MaxIter
	}
	if opts.C <= 0 {
		opts.C = 1.0
	}

	d := len(X[0])
	counts := make([]int, classes)
	for i, row := range X {
		if len(row) != d {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrDimension, i, len(row), d)
		}
		if y[i] < 0 || y[i] >= classes {
			return nil, fmt.Errorf("label %d out of range at row %d", y[i], i)
		}
		if w[i] <= 0 {
			return nil, fmt.Errorf("non-positive weight %v at row %d", w[i], i)
		}
		counts[y[i]]++
	}
	for k, c := range counts {
		if c == 0 {
			return nil, fmt.Errorf("%w: class %d has no rows", ErrTooFewClasses, k)
		}
	}

	s := make([]float64, n)
	for i := range X {
		s[i] = w[i]
		if opts.Balanced {
			s[i] *= float64(n) / (float64(classes) * float64(counts[y[i]]))
		}
	}
	total := floats.Sum(s)
	floats.Scale(1/total, s)

	obj := &objective{X: X, y: y, s: s, classes: classes, d: d, lambda: 1 / (opts.C * total)}
	problem := optimize.Problem{
		Func: func(theta []float64) float64 { return obj.eval(theta, nil) },
		Grad: func(grad, theta []float64) { obj.eval(theta, grad) },
	}
	settings := &optimize.Settings{
		GradientThreshold: opts.Tolerance,
		MajorIterations:   opts.MaxIter,
	}
	res, err := optimize.Minimize(problem, make([]float64, classes*(d+1)), settings, &optimize.LBFGS{})
	if err != nil {
		// A stalled line search still reports the best point it reached.
		if res == nil || len(res.X) != classes*(d+1) || math.IsNaN(res.F) || math.IsInf(res.F, 0) {
			return nil, fmt.Errorf("optimize: %w", err)
		}
	}

	m := &Model{Classes: classes, Features: d, Weights: make([][]float64, classes), Bias: make([]float64, classes)}
	stride := d + 1
	for k := 0; k < classes; k++ {
		m.Weights[k] = append([]float64(nil), res.X[k*stride:k*stride+d]...)
		m.Bias[k] = res.X[k*stride+d]
	}
	m.Iterations = res.Stats.MajorIterations
	return m, nil
}

// objective is the weighted softmax cross-entropy plus L2 on the weights.
// Parameters are packed per class: d weights, then the bias.
type objective struct {
	X       [][]float64
	y       []int
	s       []float64
	classes int
	d       int
	lambda  float64
}

func (o *objective) eval(theta, grad []float64) float64 {
	stride := o.d + 1
	if grad != nil {
		floats.Scale(0, grad)
	}
	z := make([]float64, o.classes)
	var loss float64
	for i, row := range o.X {
		for k := range z {
			p := theta[k*stride : (k+1)*stride]
			z[k] = p[o.d] + floats.Dot(p[:o.d], row)
		}
		lse := floats.LogSumExp(z)
		loss += o.s[i] * (lse - z[o.y[i]])
		if grad == nil {
			continue
		}
		for k, v := range z {
			g := math.Exp(v - lse)
			if k == o.y[i] {
				g--
			}
			g *= o.s[i]
			gk := grad[k*stride : (k+1)*stride]
			floats.AddScaled(gk[:o.d], g, row)
			gk[o.d] += g
		}
	}
	for k := 0; k < o.classes; k++ {
		wk := theta[k*stride : k*stride+o.d]
		loss += 0.5 * o.lambda * floats.Dot(wk, wk)
		if grad != nil {
			floats.AddScaled(grad[k*stride:k*stride+o.d], o.lambda, wk)
		}
	}
	return loss
}

// Validate checks the parameter shapes.
func (m *Model) Validate() error {
	if m.Classes < 2 {
		return ErrTooFewClasses
	}
	if len(m.Weights) != m.Classes || len(m.Bias) != m.Classes {
		return fmt.Errorf("%w: %d weight rows and %d biases for %d classes", ErrDimension, len(m.Weights), len(m.Bias), m.Classes)
	}
	for k, row := range m.Weights {
		if len(row) != m.Features {
			return fmt.Errorf("%w: weight row %d has %d entries, want %d", ErrDimension, k, len(row), m.Features)
		}
	}
	return nil
}

// PredictProba returns one probability per class.
func (m *Model) PredictProba(x []float64) ([]float64, error) {
	if len(x) != m.Features {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(x), m.Features)
	}
	p := make([]float64, m.Classes)
	m.scores(x, p)
	softmax(p)
	return p, nil
}

func (m *Model) scores(x, out []float64) {
	for k := range out {
		out[k] = m.Bias[k] + floats.Dot(m.Weights[k], x)
	}
}

func softmax(z []float64) {
	maxZ := floats.Max(z)
	var sum float64
	for k, v := range z {
		z[k] = math.Exp(v - maxZ)
		sum += z[k]
	}
	for k := range z {
		z[k] /= sum
	}
}

// ArgMax returns the index and value of the largest probability.
// Ties go to the lowest index. Returns -1 for an empty slice.
func ArgMax(p []float64) (int, float64) {
	best, bestP := -1, math.Inf(-1)
	for k, v := range p {
		if v > bestP {
			best, bestP = k, v
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, bestP
}
