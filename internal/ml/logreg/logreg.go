// Package logreg fits one-vs-rest L2-regularised logistic regression models.
//
// Each binary sub-problem minimises
//
//	0.5*||w||^2 + C * sum_i log(1 + exp(-y_i * w.x_i))
//
// with the intercept carried as an extra, regularised, unit feature. Minimisation is delegated
// to gonum's L-BFGS.
package logreg

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"iris-model-pipeline/internal/core/domain"
)

const (
	ModelType = "LogisticRegression"
	Solver    = "lbfgs-ovr"
)

type Params struct {
	C            float64 `json:"C"`
	MaxIter      int     `json:"max_iter"`
	FitIntercept bool    `json:"fit_intercept"`
}

func DefaultParams() Params {
	return Params{C: 1.0, MaxIter: 100, FitIntercept: true}
}

// Classifier is a fitted (or unfitted) one-vs-rest model. It serialises to the model.json
// artifact as-is.
type Classifier struct {
	Params       Params      `json:"params"`
	Classes      []int       `json:"classes"`
	FeatureNames []string    `json:"feature_names,omitempty"`
	Coef         [][]float64 `json:"coef"`
	Intercept    []float64   `json:"intercept"`
	NIter        []int       `json:"n_iter"`
}

func New(p Params) *Classifier {
	return &Classifier{Params: p}
}

func (c *Classifier) Fitted() bool {
	return len(c.Coef) > 0
}

func (c *Classifier) NumFeatures() int {
	if !c.Fitted() {
		return 0
	}
	return len(c.Coef[0])
}

// Fit trains one binary model per class; with exactly two classes a single model scores the
// second class against the first.
func (c *Classifier) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return domain.ErrEmptyDataset
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: %d rows, %d labels", domain.ErrMalformedDataset, len(X), len(y))
	}
	if c.Params.C <= 0 {
		return fmt.Errorf("logreg: C must be positive, got %v", c.Params.C)
	}
	if c.Params.MaxIter <= 0 {
		return fmt.Errorf("logreg: max_iter must be positive, got %d", c.Params.MaxIter)
	}

	classes := uniqueSorted(y)
	if len(classes) < 2 {
		return fmt.Errorf("logreg: need at least 2 classes, got %d", len(classes))
	}

	targets := classes
	if len(classes) == 2 {
		targets = classes[1:]
	}

	c.Classes = classes
	c.Coef = make([][]float64, 0, len(targets))
	c.Intercept = make([]float64, 0, len(targets))
	c.NIter = make([]int, 0, len(targets))

	for _, class := range targets {
		signs := make([]float64, len(y))
		for i, label := range y {
			if label == class {
				signs[i] = 1
			} else {
				signs[i] = -1
			}
		}
		w, iters, err := c.fitBinary(X, signs)
		if err != nil {
			return fmt.Errorf("fit class %d: %w", class, err)
		}
		d := len(X[0])
		c.Coef = append(c.Coef, w[:d])
		if c.Params.FitIntercept {
			c.Intercept = append(c.Intercept, w[d])
		} else {
			c.Intercept = append(c.Intercept, 0)
		}
		c.NIter = append(c.NIter, iters)
	}
	return nil
}

func (c *Classifier) fitBinary(X [][]float64, signs []float64) ([]float64, int, error) {
	d := len(X[0])
	dim := d
	if c.Params.FitIntercept {
		dim++
	}
	cReg := c.Params.C

	// margins returns y_i * w.x_i for every row.
	margins := func(w []float64) []float64 {
		m := make([]float64, len(X))
		for i, x := range X {
			z := floats.Dot(w[:d], x)
			if c.Params.FitIntercept {
				z += w[d]
			}
			m[i] = signs[i] * z
		}
		return m
	}

	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			loss := 0.5 * floats.Dot(w, w)
			for _, m := range margins(w) {
				loss += cReg * log1pExp(-m)
			}
			return loss
		},
		Grad: func(grad, w []float64) {
			copy(grad, w)
			for i, m := range margins(w) {
				// d/dz log(1+exp(-z)) = -sigmoid(-z)
				g := -cReg * sigmoid(-m) * signs[i]
				floats.AddScaled(grad[:d], g, X[i])
				if c.Params.FitIntercept {
					grad[d] += g
				}
			}
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   c.Params.MaxIter,
		GradientThreshold: 1e-6,
	}

	result, err := optimize.Minimize(problem, make([]float64, dim), settings, &optimize.LBFGS{})
	if result == nil || result.X == nil {
		if err == nil {
			err = errors.New("optimizer returned no result")
		}
		return nil, 0, err
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, fmt.Errorf("optimizer diverged: %v", result.Status)
		}
	}
	if err != nil {
		log.WithFields(log.Fields{
			"status":     result.Status.String(),
			"iterations": result.Stats.MajorIterations,
		}).Warn("logistic regression did not converge")
	}

	w := make([]float64, dim)
	copy(w, result.X)
	return w, result.Stats.MajorIterations, nil
}

// DecisionFunction returns the raw score per fitted binary model.
func (c *Classifier) DecisionFunction(x []float64) ([]float64, error) {
	if !c.Fitted() {
		return nil, domain.ErrModelNotFitted
	}
	if len(x) != c.NumFeatures() {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrFeatureMismatch, len(x), c.NumFeatures())
	}
	scores := make([]float64, len(c.Coef))
	for k, w := range c.Coef {
		scores[k] = floats.Dot(w, x) + c.Intercept[k]
	}
	return scores, nil
}

func (c *Classifier) Predict(X [][]float64) ([]int, error) {
	out := make([]int, len(X))
	for i, x := range X {
		scores, err := c.DecisionFunction(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if len(scores) == 1 {
			if scores[0] > 0 {
				out[i] = c.Classes[1]
			} else {
				out[i] = c.Classes[0]
			}
			continue
		}
		out[i] = c.Classes[floats.MaxIdx(scores)]
	}
	return out, nil
}

// PredictProba returns per-class probabilities: sigmoid scores normalised to sum to one.
func (c *Classifier) PredictProba(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, x := range X {
		scores, err := c.DecisionFunction(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if len(scores) == 1 {
			p := sigmoid(scores[0])
			out[i] = []float64{1 - p, p}
			continue
		}
		probs := make([]float64, len(scores))
		for k, s := range scores {
			probs[k] = sigmoid(s)
		}
		if sum := floats.Sum(probs); sum > 0 {
			floats.Scale(1/sum, probs)
		}
		out[i] = probs
	}
	return out, nil
}

func (c *Classifier) MarshalArtifact() ([]byte, error) {
	if !c.Fitted() {
		return nil, domain.ErrModelNotFitted
	}
	return json.MarshalIndent(c, "", "  ")
}

// UnmarshalArtifact decodes a model.json artifact and checks it is internally consistent.
func UnmarshalArtifact(data []byte) (*Classifier, error) {
	var c Classifier
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if !c.Fitted() {
		return nil, domain.ErrModelNotFitted
	}
	if len(c.Intercept) != len(c.Coef) {
		return nil, fmt.Errorf("decode model artifact: %d coef rows, %d intercepts", len(c.Coef), len(c.Intercept))
	}
	want := len(c.Classes)
	if want == 2 {
		want = 1
	}
	if len(c.Coef) != want {
		return nil, fmt.Errorf("decode model artifact: %d coef rows for %d classes", len(c.Coef), len(c.Classes))
	}
	for _, row := range c.Coef {
		if len(row) != len(c.Coef[0]) {
			return nil, fmt.Errorf("decode model artifact: ragged coefficients")
		}
	}
	return &c, nil
}

func uniqueSorted(y []int) []int {
	seen := make(map[int]struct{}, len(y))
	for _, v := range y {
		seen[v] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// log1pExp computes log(1+exp(z)) without overflow.
func log1pExp(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}
