// Package stats holds the shared numeric primitives for the analytics
// engines, most notably one least-squares implementation used by both
// the KPI and the forecast engines, so that their trend numbers can
// never disagree.
package stats

import (
	"errors"
	"math"
)

var ErrNotEnoughPoints = errors.New("not enough points for a linear fit")

// Fit is the result of an ordinary least squares fit of y against x
type Fit struct {
	Slope          float64
	Intercept      float64
	ResidualStdErr float64
	RSquared       float64

	N      int
	MeanX  float64
	SumSqX float64 // sum of squared deviations of x from its mean
}

// LinearFit fits y = slope*x + intercept by ordinary least squares
func LinearFit(x, y []float64) (Fit, error) {
	if len(x) != len(y) {
		return Fit{}, errors.New("x and y must have the same length")
	}
	n := len(x)
	if n < 2 {
		return Fit{}, ErrNotEnoughPoints
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var sumSqX, sumXY float64
	for i := range x {
		dx := x[i] - meanX
		sumSqX += dx * dx
		sumXY += dx * (y[i] - meanY)
	}
	if sumSqX == 0 {
		return Fit{}, errors.New("all x values are identical")
	}

	slope := sumXY / sumSqX
	intercept := meanY - slope*meanX

	var ssRes, ssTot float64
	for i := range x {
		predicted := slope*x[i] + intercept
		ssRes += (y[i] - predicted) * (y[i] - predicted)
		ssTot += (y[i] - meanY) * (y[i] - meanY)
	}

	fit := Fit{
		Slope:     slope,
		Intercept: intercept,
		N:         n,
		MeanX:     meanX,
		SumSqX:    sumSqX,
	}
	if n > 2 {
		fit.ResidualStdErr = math.Sqrt(ssRes / float64(n-2))
	}
	if ssTot > 0 {
		fit.RSquared = 1 - ssRes/ssTot
	}

	return fit, nil
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStdDev is the sample standard deviation (n-1 denominator),
// 0 for fewer than two values
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	var sumSq float64
	for _, v := range values {
		sumSq += (v - m) * (v - m)
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

func Min(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func Max(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
