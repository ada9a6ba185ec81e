package recommend

import (
	"math"
	"testing"
)

func TestFitScaler(t *testing.T) {
	x := [][]float64{
		{1, 5},
		{3, 5},
		{5, 5},
	}
	s := FitScaler(x)

	if s.Mean[0] != 3 || s.Mean[1] != 5 {
		t.Errorf("Mean = %v; want [3 5]", s.Mean)
	}
	if s.Scale[1] != 1 {
		t.Errorf("Scale[1] = %f; want 1 for a constant feature", s.Scale[1])
	}

	got := s.Transform([]float64{3, 5})
	if got[0] != 0 || got[1] != 0 {
		t.Errorf("Transform(mean) = %v; want zeros", got)
	}
}

func clusters() ([][]float64, []int) {
	var x [][]float64
	var y []int
	centers := []float64{-2, 0, 2}
	for i, c := range centers {
		for _, d := range []float64{-0.3, -0.1, 0, 0.1, 0.3} {
			x = append(x, []float64{c + d, d})
			y = append(y, i+1)
		}
	}
	return x, y
}

func TestTrainSoftmax_SeparatesClusters(t *testing.T) {
	x, y := clusters()
	m := TrainSoftmax(x, y, []int{1, 2, 3}, DefaultTrainConfig())

	tests := []struct {
		in   []float64
		want int
	}{
		{[]float64{-2, 0}, 1},
		{[]float64{0, 0}, 2},
		{[]float64{2, 0}, 3},
	}
	for _, tt := range tests {
		got, conf := m.Predict(tt.in)
		if got != tt.want {
			t.Errorf("Predict(%v) = %d; want %d", tt.in, got, tt.want)
		}
		if conf <= 1.0/3 || conf > 1 {
			t.Errorf("Predict(%v) confidence = %f; want in (1/3, 1]", tt.in, conf)
		}
	}
}

func TestTrainSoftmax_Deterministic(t *testing.T) {
	x, y := clusters()
	a := TrainSoftmax(x, y, []int{1, 2, 3}, DefaultTrainConfig())
	b := TrainSoftmax(x, y, []int{1, 2, 3}, DefaultTrainConfig())

	for k := range a.Weights {
		for j := range a.Weights[k] {
			if a.Weights[k][j] != b.Weights[k][j] {
				t.Fatalf("weights differ at [%d][%d]: %f vs %f", k, j, a.Weights[k][j], b.Weights[k][j])
			}
		}
	}
}

func TestSoftmax_ProbabilitiesSumToOne(t *testing.T) {
	m := &Softmax{
		Classes: []int{1, 2},
		Weights: [][]float64{{800, 0}, {-800, 0}},
	}
	probs := m.Probabilities([]float64{1})

	var sum float64
	for _, p := range probs {
		if math.IsNaN(p) {
			t.Fatalf("Probabilities() = %v; want no NaN", probs)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("sum = %f; want 1", sum)
	}
}

func TestTrainSoftmax_UnseenClassKeepsRow(t *testing.T) {
	x, y := clusters()
	m := TrainSoftmax(x, y, []int{1, 2, 3, 4, 5}, DefaultTrainConfig())
	if len(m.Weights) != 5 {
		t.Fatalf("len(Weights) = %d; want 5", len(m.Weights))
	}
	if got, _ := m.Predict([]float64{2, 0}); got != 3 {
		t.Errorf("Predict() = %d; want 3", got)
	}
}
