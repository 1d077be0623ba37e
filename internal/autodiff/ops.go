package autodiff

import (
	"math"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/net"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

type maebe struct {
	err error
}

func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

// linear computes x·wᵀ + ones·b. The bias is added through a matrix product so no
// broadcasting op is needed.
func (m *maebe) linear(x, ones, w, b *G.Node) *G.Node {
	wT := m.do(func() (*G.Node, error) { return G.Transpose(w) })
	xw := m.do(func() (*G.Node, error) { return G.Mul(x, wT) })
	bias := m.do(func() (*G.Node, error) { return G.Mul(ones, b) })
	return m.do(func() (*G.Node, error) { return G.Add(xw, bias) })
}

func (m *maebe) rectify(x *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Rectify(x) })
}

// clamp limits x to [lo, hi] as x - relu(x-hi) + relu(lo-x); the gradient is 1
// inside the interval and 0 outside.
func (m *maebe) clamp(x *G.Node, lo, hi float64) *G.Node {
	loC := G.NewConstant(lo, G.WithName("clamp_lo"))
	hiC := G.NewConstant(hi, G.WithName("clamp_hi"))

	over := m.do(func() (*G.Node, error) { return G.Sub(x, hiC) })
	over = m.rectify(over)
	under := m.do(func() (*G.Node, error) { return G.Sub(loC, x) })
	under = m.rectify(under)

	retVal := m.do(func() (*G.Node, error) { return G.Sub(x, over) })
	return m.do(func() (*G.Node, error) { return G.Add(retVal, under) })
}

// kl is Σ_j ρ·log(ρ/c_j) + (1-ρ)·log((1-ρ)/(1-c_j)) with c = clamp(mean over rows of h),
// rewritten as n·k - ρ·Σlog c - (1-ρ)·Σlog(1-c) with k = ρ·log ρ + (1-ρ)·log(1-ρ).
func (m *maebe) kl(h *G.Node, obj net.Objective) *G.Node {
	rho := obj.Sparsity.Rho
	hidden := h.Shape()[1]
	k := float64(hidden) * (rho*math.Log(rho) + (1-rho)*math.Log(1-rho))

	rhoHat := m.do(func() (*G.Node, error) { return G.Mean(h, 0) })
	c := m.clamp(rhoHat, obj.Sparsity.Min, obj.Sparsity.Max)

	one := G.NewConstant(1.0, G.WithName("one"))
	logC := m.do(func() (*G.Node, error) { return G.Log(c) })
	oneMinusC := m.do(func() (*G.Node, error) { return G.Sub(one, c) })
	log1mC := m.do(func() (*G.Node, error) { return G.Log(oneMinusC) })

	sumLogC := m.do(func() (*G.Node, error) { return G.Sum(logC) })
	sumLog1mC := m.do(func() (*G.Node, error) { return G.Sum(log1mC) })

	rhoC := G.NewConstant(rho, G.WithName("rho"))
	rho1C := G.NewConstant(1-rho, G.WithName("one_minus_rho"))
	a := m.do(func() (*G.Node, error) { return G.Mul(rhoC, sumLogC) })
	b := m.do(func() (*G.Node, error) { return G.Mul(rho1C, sumLog1mC) })

	kC := G.NewConstant(k, G.WithName("kl_const"))
	retVal := m.do(func() (*G.Node, error) { return G.Sub(kC, a) })
	return m.do(func() (*G.Node, error) { return G.Sub(retVal, b) })
}
