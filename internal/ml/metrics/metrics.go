// Package metrics computes classification scores for the training report.
package metrics

import (
	"fmt"
	"sort"

	"iris-model-pipeline/internal/core/domain"
)

// Names of the metrics as logged to the tracking server.
const (
	Accuracy  = "accuracy"
	Precision = "precision"
	Recall    = "recall"
	F1Score   = "f1_score"
)

type Report struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
}

// Map returns the report keyed by tracking metric name.
func (r Report) Map() map[string]float64 {
	return map[string]float64{
		Accuracy:  r.Accuracy,
		Precision: r.Precision,
		Recall:    r.Recall,
		F1Score:   r.F1,
	}
}

// Evaluate computes accuracy plus support-weighted precision, recall and F1.
// Labels are the union of yTrue and yPred; a zero denominator scores 0.
func Evaluate(yTrue, yPred []int) (Report, error) {
	if len(yTrue) != len(yPred) {
		return Report{}, fmt.Errorf("%w: %d true labels, %d predictions", domain.ErrMalformedDataset, len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return Report{}, domain.ErrEmptyDataset
	}

	type counts struct{ tp, fp, fn, support int }
	per := map[int]*counts{}
	get := func(label int) *counts {
		c, ok := per[label]
		if !ok {
			c = &counts{}
			per[label] = c
		}
		return c
	}

	correct := 0
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		get(t).support++
		if t == p {
			correct++
			get(t).tp++
		} else {
			get(p).fp++
			get(t).fn++
		}
	}

	labels := make([]int, 0, len(per))
	for l := range per {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	var r Report
	total := float64(len(yTrue))
	for _, l := range labels {
		c := per[l]
		if c.support == 0 {
			continue
		}
		p := safeDiv(float64(c.tp), float64(c.tp+c.fp))
		rec := safeDiv(float64(c.tp), float64(c.tp+c.fn))
		f1 := safeDiv(2*p*rec, p+rec)
		w := float64(c.support) / total
		r.Precision += w * p
		r.Recall += w * rec
		r.F1 += w * f1
	}
	r.Accuracy = float64(correct) / total
	return r, nil
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
