package rl

import "math"

// AdamOptimizer applies accumulated gradients to an MLP using Adam.
// Gradients are averaged over the number of accumulated backward passes, so
// a whole batch results in exactly one parameter step.
type AdamOptimizer struct {
	net          *MLP
	learningRate float64
	beta1        float64
	beta2        float64
	epsilon      float64

	mW []Matrix
	vW []Matrix
	mB []Vector
	vB []Vector
	t  int
}

// NewAdamOptimizer creates an optimizer bound to net.
func NewAdamOptimizer(net *MLP, learningRate float64) *AdamOptimizer {
	opt := &AdamOptimizer{
		net:          net,
		learningRate: learningRate,
		beta1:        0.9,
		beta2:        0.999,
		epsilon:      1e-8,
		mW:           make([]Matrix, len(net.Weights)),
		vW:           make([]Matrix, len(net.Weights)),
		mB:           make([]Vector, len(net.Biases)),
		vB:           make([]Vector, len(net.Biases)),
	}
	for l := range net.Weights {
		opt.mW[l] = make(Matrix, len(net.Weights[l]))
		opt.vW[l] = make(Matrix, len(net.Weights[l]))
		for i := range net.Weights[l] {
			opt.mW[l][i] = make(Vector, len(net.Weights[l][i]))
			opt.vW[l][i] = make(Vector, len(net.Weights[l][i]))
		}
		opt.mB[l] = make(Vector, len(net.Biases[l]))
		opt.vB[l] = make(Vector, len(net.Biases[l]))
	}
	return opt
}

// Step performs one gradient-descent update from the accumulated gradients.
// A zero accumulator is a no-op.
func (opt *AdamOptimizer) Step(g *Gradients) {
	if g.count == 0 {
		return
	}
	scale := 1.0 / float64(g.count)
	opt.t++
	bc1 := 1.0 - math.Pow(opt.beta1, float64(opt.t))
	bc2 := 1.0 - math.Pow(opt.beta2, float64(opt.t))

	for l := range opt.net.Weights {
		for i := range opt.net.Weights[l] {
			for j := range opt.net.Weights[l][i] {
				grad := g.DWeights[l][i][j] * scale
				opt.mW[l][i][j] = opt.beta1*opt.mW[l][i][j] + (1-opt.beta1)*grad
				opt.vW[l][i][j] = opt.beta2*opt.vW[l][i][j] + (1-opt.beta2)*grad*grad
				mHat := opt.mW[l][i][j] / bc1
				vHat := opt.vW[l][i][j] / bc2
				opt.net.Weights[l][i][j] -= opt.learningRate * mHat / (math.Sqrt(vHat) + opt.epsilon)
			}
		}
		for i := range opt.net.Biases[l] {
			grad := g.DBiases[l][i] * scale
			opt.mB[l][i] = opt.beta1*opt.mB[l][i] + (1-opt.beta1)*grad
			opt.vB[l][i] = opt.beta2*opt.vB[l][i] + (1-opt.beta2)*grad*grad
			mHat := opt.mB[l][i] / bc1
			vHat := opt.vB[l][i] / bc2
			opt.net.Biases[l][i] -= opt.learningRate * mHat / (math.Sqrt(vHat) + opt.epsilon)
		}
	}
}
