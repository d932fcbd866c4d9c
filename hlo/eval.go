/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hlo

import (
	"math"

	"github.com/pkg/errors"
)

// MaxTripCount bounds the number of iterations a while loop may run in Evaluate.
var MaxTripCount = 1 << 20

// Evaluate runs the entry computation of a verified module on the given
// arguments. Values are immutable, so aliasing between instructions is never
// observable, which makes it a reference to compare rewritten modules against.
func Evaluate(m *Module, args ...*Literal) (*Literal, error) {
	if m.EntryComputation() == nil {
		return nil, errors.New("hlo: module has no entry computation")
	}
	return evaluator{m}.call(m.EntryComputation(), args)
}

type evaluator struct {
	m *Module
}

func (self evaluator) call(c *Computation, args []*Literal) (*Literal, error) {
	if len(args) != len(c.Params) {
		return nil, errors.Errorf("hlo: %s takes %d arguments, got %d", c.Name, len(c.Params), len(args))
	}
	vals := make([]*Literal, len(c.Instrs))
	for _, v := range c.PostOrder() {
		ret, err := self.eval(c, v, vals, args)
		if err != nil {
			return nil, errors.Wrapf(err, "%s/%s", c.Name, v.Name)
		}
		vals[v.ID] = ret
	}
	return vals[c.Root], nil
}

func (self evaluator) eval(c *Computation, v *Instruction, vals []*Literal, args []*Literal) (*Literal, error) {
	ops := make([]*Literal, len(v.Operands))
	for i, op := range v.Operands {
		ops[i] = vals[op]
	}
	switch v.Op {
	case OpParameter:
		if !args[v.Index].Shape.Equal(v.Shape) {
			return nil, errors.Errorf("argument %d has shape %s, expect %s", v.Index, args[v.Index].Shape, v.Shape)
		}
		return args[v.Index], nil
	case OpConstant:
		return v.Literal, nil
	case OpBroadcast:
		return Splat(v.Shape, ops[0].Data[0]), nil
	case OpCopy:
		return ops[0].Clone(), nil
	case OpBitcast:
		ret := ops[0].Clone()
		ret.Shape = v.Shape.Clone()
		return ret, nil
	case OpNegate:
		return elementwise(v.Shape, ops, func(x []float64) float64 { return -x[0] }), nil
	case OpAdd:
		return elementwise(v.Shape, ops, func(x []float64) float64 { return x[0] + x[1] }), nil
	case OpSubtract:
		return elementwise(v.Shape, ops, func(x []float64) float64 { return x[0] - x[1] }), nil
	case OpMultiply:
		return elementwise(v.Shape, ops, func(x []float64) float64 { return x[0] * x[1] }), nil
	case OpMaximum:
		return elementwise(v.Shape, ops, func(x []float64) float64 { return math.Max(x[0], x[1]) }), nil
	case OpCompare:
		return elementwise(v.Shape, ops, func(x []float64) float64 { return b2f(v.Direction.apply(x[0], x[1])) }), nil
	case OpSelect:
		return elementwise(v.Shape, ops, func(x []float64) float64 {
			if x[0] != 0 {
				return x[1]
			} else {
				return x[2]
			}
		}), nil
	case OpTuple:
		return TupleLiteral(ops...), nil
	case OpGetTupleElement:
		return ops[0].Elements[v.Index], nil
	case OpWhile:
		return self.loop(v, ops[0])
	case OpCustomCall:
		return nil, errors.Errorf("cannot evaluate custom-call %q", v.Target)
	default:
		panic("unreachable")
	}
}

func (self evaluator) loop(v *Instruction, state *Literal) (*Literal, error) {
	cond, body := self.m.Computation(v.Cond), self.m.Computation(v.Body)
	for n := 0; ; n++ {
		p, err := self.call(cond, []*Literal{state})
		if err != nil {
			return nil, err
		}
		if p.Data[0] == 0 {
			return state, nil
		}
		if n >= MaxTripCount {
			return nil, errors.Errorf("while loop exceeded %d iterations", MaxTripCount)
		}
		if state, err = self.call(body, []*Literal{state}); err != nil {
			return nil, err
		}
	}
}

func elementwise(shape Shape, ops []*Literal, fn func([]float64) float64) *Literal {
	x := make([]float64, len(ops))
	ret := &Literal{Shape: shape.Clone(), Data: make([]float64, shape.Size())}
	for i := range ret.Data {
		for j, op := range ops {
			x[j] = op.Data[i]
		}
		ret.Data[i] = shape.Type.round(fn(x))
	}
	return ret
}

func b2f(v bool) float64 {
	if v {
		return 1
	} else {
		return 0
	}
}
