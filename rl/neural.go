package rl

import (
	"math"
	"math/rand"
)

// Simple neural network helpers

// Vector is a slice of float64
type Vector []float64

// Matrix is a slice of Vectors
type Matrix []Vector

// NewMatrix creates a matrix of size rows x cols initialized with random small weights
func NewMatrix(rows, cols int) Matrix {
	m := make(Matrix, rows)
	for i := 0; i < rows; i++ {
		m[i] = make(Vector, cols)
		for j := 0; j < cols; j++ {
			// Xavier initialization-ish
			m[i][j] = rand.NormFloat64() * math.Sqrt(2.0/float64(cols))
		}
	}
	return m
}

// MatMul multiplies matrix m by vector v
func MatMul(m Matrix, v Vector) Vector {
	rows := len(m)
	cols := len(m[0])
	if len(v) != cols {
		panic("dimension mismatch in MatMul")
	}
	res := make(Vector, rows)
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			sum += m[i][j] * v[j]
		}
		res[i] = sum
	}
	return res
}

// AddVec adds two vectors
func AddVec(v1, v2 Vector) Vector {
	if len(v1) != len(v2) {
		panic("dimension mismatch in AddVec")
	}
	res := make(Vector, len(v1))
	for i := range v1 {
		res[i] = v1[i] + v2[i]
	}
	return res
}

// ReLU activation
func ReLU(v Vector) Vector {
	res := make(Vector, len(v))
	for i, val := range v {
		if val > 0 {
			res[i] = val
		} else {
			res[i] = 0
		}
	}
	return res
}

// Softmax converts raw scores into a probability distribution.
func Softmax(scores Vector) Vector {
	// Subtract the max for numerical stability.
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	probs := make(Vector, len(scores))
	var sumExp float64
	for i, s := range scores {
		probs[i] = math.Exp(s - maxScore)
		sumExp += probs[i]
	}
	for i := range probs {
		probs[i] /= sumExp
	}
	return probs
}

// SampleCategorical draws an index from the distribution described by probs.
func SampleCategorical(probs Vector, rng *rand.Rand) int {
	r := rng.Float64()
	var cumulative float64
	for i, p := range probs {
		cumulative += p
		if r <= cumulative {
			return i
		}
	}
	return len(probs) - 1 // Fallback for floating point slop
}

// MLP is a feed-forward network with ReLU hidden layers and a linear output.
// Forward and Backward walk the same layer list, so the activation caches
// returned by Forward line up with the accumulator from NewGradients.
type MLP struct {
	Sizes   []int
	Weights []Matrix // Weights[l] maps activations of layer l to layer l+1
	Biases  []Vector
}

// NewMLP creates a network with the given layer sizes (input first, output last).
func NewMLP(sizes ...int) *MLP {
	if len(sizes) < 2 {
		panic("MLP needs at least an input and an output layer")
	}
	n := len(sizes) - 1
	net := &MLP{
		Sizes:   append([]int(nil), sizes...),
		Weights: make([]Matrix, n),
		Biases:  make([]Vector, n),
	}
	for l := 0; l < n; l++ {
		net.Weights[l] = NewMatrix(sizes[l+1], sizes[l])
		net.Biases[l] = make(Vector, sizes[l+1])
	}
	return net
}

// InputSize returns the expected input dimensionality.
func (net *MLP) InputSize() int { return net.Sizes[0] }

// OutputSize returns the output dimensionality.
func (net *MLP) OutputSize() int { return net.Sizes[len(net.Sizes)-1] }

// Forward runs the network and returns every layer's activation, input first.
// Hidden layers are ReLU-activated; the final entry is the raw linear output.
func (net *MLP) Forward(input Vector) []Vector {
	acts := make([]Vector, len(net.Sizes))
	acts[0] = input
	for l := 0; l < len(net.Weights); l++ {
		z := AddVec(MatMul(net.Weights[l], acts[l]), net.Biases[l])
		if l < len(net.Weights)-1 {
			acts[l+1] = ReLU(z)
		} else {
			acts[l+1] = z
		}
	}
	return acts
}

// Output is a convenience wrapper for callers that only need the final layer.
func (net *MLP) Output(input Vector) Vector {
	acts := net.Forward(input)
	return acts[len(acts)-1]
}

// Gradients accumulates parameter gradients shaped like an MLP.
type Gradients struct {
	DWeights []Matrix
	DBiases  []Vector
	count    int
}

// NewGradients allocates a zeroed accumulator matching net's shape.
func NewGradients(net *MLP) *Gradients {
	g := &Gradients{
		DWeights: make([]Matrix, len(net.Weights)),
		DBiases:  make([]Vector, len(net.Biases)),
	}
	for l := range net.Weights {
		g.DWeights[l] = make(Matrix, len(net.Weights[l]))
		for i := range net.Weights[l] {
			g.DWeights[l][i] = make(Vector, len(net.Weights[l][i]))
		}
		g.DBiases[l] = make(Vector, len(net.Biases[l]))
	}
	return g
}

// Count reports how many backward passes were accumulated.
func (g *Gradients) Count() int { return g.count }

// Backward backpropagates dOut (the gradient of the loss at the linear output)
// through the activations produced by Forward, adding the parameter gradients
// into g. The network itself is not modified.
func (net *MLP) Backward(acts []Vector, dOut Vector, g *Gradients) {
	delta := dOut
	for l := len(net.Weights) - 1; l >= 0; l-- {
		for i := range delta {
			g.DBiases[l][i] += delta[i]
			for j := range acts[l] {
				g.DWeights[l][i][j] += delta[i] * acts[l][j]
			}
		}
		if l == 0 {
			break
		}
		// Propagate through the weights, then through the ReLU of layer l.
		prev := make(Vector, len(acts[l]))
		for j := range prev {
			var sum float64
			for i := range delta {
				sum += net.Weights[l][i][j] * delta[i]
			}
			if acts[l][j] > 0 {
				prev[j] = sum
			}
		}
		delta = prev
	}
	g.count++
}
