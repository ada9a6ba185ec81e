package recommend

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes features to zero mean and unit variance
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler computes per-feature mean and standard deviation. Constant
// features get a scale of 1 so they pass through centered.
func FitScaler(x [][]float64) Scaler {
	if len(x) == 0 {
		return Scaler{}
	}
	dim := len(x[0])
	s := Scaler{Mean: make([]float64, dim), Scale: make([]float64, dim)}
	col := make([]float64, len(x))
	for j := 0; j < dim; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if math.IsNaN(std) || std < 1e-9 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s
}

// Transform returns the standardized copy of v
func (s Scaler) Transform(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	floats.Sub(out, s.Mean)
	floats.Div(out, s.Scale)
	return out
}

// TrainConfig holds the gradient descent settings
type TrainConfig struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// DefaultTrainConfig returns the standard training settings
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:       400,
		LearningRate: 0.5,
		L2:           1e-3,
	}
}

// Softmax is a multinomial logistic regression. Each row of Weights holds
// one class's coefficients followed by its bias.
type Softmax struct {
	Classes []int       `json:"classes"`
	Weights [][]float64 `json:"weights"`
}

// TrainSoftmax fits a classifier on standardized inputs x with labels y.
// Every class in classes gets a row even if no sample carries it.
// Training is deterministic: weights start at zero and samples are
// visited in order.
func TrainSoftmax(x [][]float64, y []int, classes []int, cfg TrainConfig) *Softmax {
	dim := len(x[0])
	m := &Softmax{
		Classes: append([]int(nil), classes...),
		Weights: make([][]float64, len(classes)),
	}
	for k := range m.Weights {
		m.Weights[k] = make([]float64, dim+1)
	}

	index := make(map[int]int, len(classes))
	for k, c := range classes {
		index[c] = k
	}

	grads := make([][]float64, len(classes))
	for k := range grads {
		grads[k] = make([]float64, dim+1)
	}
	aug := make([]float64, dim+1)
	n := float64(len(x))

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for k := range grads {
			floats.Scale(0, grads[k])
		}
		for i, row := range x {
			copy(aug, row)
			aug[dim] = 1
			probs := m.probabilities(aug)
			target := index[y[i]]
			for k := range probs {
				diff := probs[k]
				if k == target {
					diff -= 1
				}
				floats.AddScaled(grads[k], diff/n, aug)
			}
		}
		for k := range m.Weights {
			bias := m.Weights[k][dim]
			floats.AddScaled(grads[k], cfg.L2, m.Weights[k])
			grads[k][dim] -= cfg.L2 * bias
			floats.AddScaled(m.Weights[k], -cfg.LearningRate, grads[k])
		}
	}
	return m
}

// Probabilities returns one probability per class for a standardized input
func (m *Softmax) Probabilities(x []float64) []float64 {
	aug := make([]float64, len(x)+1)
	copy(aug, x)
	aug[len(x)] = 1
	return m.probabilities(aug)
}

func (m *Softmax) probabilities(aug []float64) []float64 {
	logits := make([]float64, len(m.Weights))
	for k, w := range m.Weights {
		logits[k] = floats.Dot(w, aug)
	}
	top := floats.Max(logits)
	for k := range logits {
		logits[k] = math.Exp(logits[k] - top)
	}
	floats.Scale(1/floats.Sum(logits), logits)
	return logits
}

// Predict returns the most probable class and its probability
func (m *Softmax) Predict(x []float64) (int, float64) {
	probs := m.Probabilities(x)
	best := floats.MaxIdx(probs)
	return m.Classes[best], probs[best]
}
