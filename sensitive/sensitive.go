// Public domain.

// Package sensitive provides the gradient-carrying scalar that ELBO terms
// are accumulated on.
//
// A Value pairs a scalar with its gradient over free parameters, and
// optionally a Hessian accumulator.  The differentiable primitives of the
// model are closed and small, so composition of these few operators replaces
// a general autodiff graph: every objective sub-term is produced by Add,
// AddScaled, Scale, AddAt and Compose, never by mutating a value behind the
// gradient's back.
package sensitive

import "gonum.org/v1/gonum/floats"

// Value is a scalar paired with its gradient.  Grad has one entry per free
// parameter of whatever scope the value was created with: one source's
// vector, or all sources of a model.  Hess, when non-nil, accumulates second
// derivatives alongside.
type Value struct {
	Val  float64
	Grad []float64
	Hess [][]float64
}

// Zero creates a zero value with a zero gradient of length dim.
func Zero(dim int) *Value {
	return &Value{Grad: make([]float64, dim)}
}

// ZeroHess creates a zero value carrying a Hessian accumulator.
func ZeroHess(dim int) *Value {
	v := Zero(dim)
	v.Hess = make([][]float64, dim)
	for i := range v.Hess {
		v.Hess[i] = make([]float64, dim)
	}
	return v
}

// Reset zeroes value, gradient and any Hessian in place.
func (v *Value) Reset() {
	v.Val = 0
	for i := range v.Grad {
		v.Grad[i] = 0
	}
	for _, row := range v.Hess {
		for i := range row {
			row[i] = 0
		}
	}
}

// Add accumulates u into v element-wise.  Scopes must match.
func (v *Value) Add(u *Value) {
	v.Val += u.Val
	floats.Add(v.Grad, u.Grad)
	if v.Hess != nil && u.Hess != nil {
		for i := range v.Hess {
			floats.Add(v.Hess[i], u.Hess[i])
		}
	}
}

// AddScaled accumulates c*u into v.
func (v *Value) AddScaled(u *Value, c float64) {
	v.Val += c * u.Val
	floats.AddScaled(v.Grad, c, u.Grad)
	if v.Hess != nil && u.Hess != nil {
		for i := range v.Hess {
			floats.AddScaled(v.Hess[i], c, u.Hess[i])
		}
	}
}

// Scale multiplies value and gradient by a constant.
func (v *Value) Scale(c float64) {
	v.Val *= c
	floats.Scale(c, v.Grad)
	for _, row := range v.Hess {
		floats.Scale(c, row)
	}
}

// AddAt accumulates a source-scoped value u into an all-source value v,
// placing u's gradient at the given offset.  The value is added as is.
func (v *Value) AddAt(u *Value, off int) {
	v.Val += u.Val
	floats.Add(v.Grad[off:off+len(u.Grad)], u.Grad)
}

// Compose writes f(x) into v given the scalar f and its derivative df/dx at
// x.Val: v.Val = f, v.Grad = dfdx * x.Grad.  This is the chain-rule
// primitive for scalar functions of an accumulated quantity.  v and x may
// not alias.
func (v *Value) Compose(f, dfdx float64, x *Value) {
	v.Val = f
	for i, g := range x.Grad {
		v.Grad[i] = dfdx * g
	}
}
