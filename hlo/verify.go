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
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// VerifyError occures when a module violates a structural precondition.
type VerifyError struct {
	Computation string
	Instruction string
	Reason      string
}

func (self VerifyError) Error() string {
	if self.Instruction != "" {
		return fmt.Sprintf("VerifyError(%s/%s): %s", self.Computation, self.Instruction, self.Reason)
	} else {
		return fmt.Sprintf("VerifyError(%s): %s", self.Computation, self.Reason)
	}
}

// Resolver maps computation IDs to computations.
type Resolver func(ComputationID) *Computation

type _Verifier struct {
	c *Computation
	r Resolver
}

func (self _Verifier) fail(v *Instruction, format string, args ...interface{}) error {
	ret := VerifyError{Computation: self.c.Name, Reason: fmt.Sprintf(format, args...)}
	if v != nil {
		ret.Instruction = v.Name
	}
	return ret
}

// Verify checks the structure of every computation of the module and makes
// sure the call graph has no cycles.
func (self *Module) Verify() error {
	if self.EntryComputation() == nil {
		return VerifyError{Computation: self.Name, Reason: "module has no entry computation"}
	}
	for id, c := range self.Computations {
		if c == nil {
			return VerifyError{Computation: self.Name, Reason: fmt.Sprintf("computation %d is missing", id)}
		}
		if err := VerifyComputation(c, self.Computation); err != nil {
			return err
		}
	}
	_, err := self.CallOrder()
	return err
}

func byID(nodes []graph.Node) {
	sort.Slice(nodes, func(i int, j int) bool {
		return nodes[i].ID() < nodes[j].ID()
	})
}

// CallOrder returns the computations reachable from the entry, callers
// before callees, ties broken by ID.
func (self *Module) CallOrder() ([]ComputationID, error) {
	g := simple.NewDirectedGraph()
	reach := self.Reachable()

	/* build the call graph */
	for _, id := range reach {
		if g.Node(int64(id)) == nil {
			g.AddNode(simple.Node(id))
		}
		for _, v := range self.Computations[id].Instrs {
			if v == nil {
				continue
			}
			for _, callee := range v.Called() {
				if callee == id {
					return nil, VerifyError{Computation: self.Computations[id].Name, Instruction: v.Name, Reason: "computation calls itself"}
				}
				g.SetEdge(simple.Edge{F: simple.Node(id), T: simple.Node(callee)})
			}
		}
	}

	/* recursion is not allowed */
	nodes, err := topo.SortStabilized(g, byID)
	if err != nil {
		return nil, VerifyError{Computation: self.Name, Reason: "call graph has a cycle: " + err.Error()}
	}

	/* convert to IDs */
	ret := make([]ComputationID, len(nodes))
	for i, n := range nodes {
		ret[i] = ComputationID(n.ID())
	}
	return ret, nil
}

// VerifyComputation checks the structure and the shapes of a single
// computation, called computations are looked up with r.
func VerifyComputation(c *Computation, r Resolver) error {
	vf := _Verifier{c: c, r: r}
	if err := vf.operands(); err != nil {
		return err
	}
	if err := vf.acyclic(); err != nil {
		return err
	}
	for _, v := range c.Instrs {
		if v != nil {
			if err := vf.shape(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (self _Verifier) operands() error {
	nparams := 0
	for i, v := range self.c.Instrs {
		if v == nil {
			continue
		}
		if v.ID != InstrID(i) {
			return self.fail(v, "instruction stored at %d has ID %d", i, v.ID)
		}
		if v.Op >= _OpMax {
			return self.fail(v, "unknown opcode %s", v.Op)
		}
		if n := v.Op.Arity(); n >= 0 && len(v.Operands) != n {
			return self.fail(v, "%s takes %d operands, got %d", v.Op, n, len(v.Operands))
		}
		for _, op := range v.Operands {
			if self.c.Instr(op) == nil {
				return self.fail(v, "operand %d does not exist", op)
			}
		}
		if v.Op == OpParameter {
			nparams++
		}
	}

	/* parameters must be listed in order */
	if nparams != len(self.c.Params) {
		return self.fail(nil, "%d parameter instructions but %d parameters", nparams, len(self.c.Params))
	}
	for i, p := range self.c.Params {
		if v := self.c.Instr(p); v == nil || v.Op != OpParameter || v.Index != i {
			return self.fail(v, "parameter %d is malformed", i)
		}
	}

	/* the root must exist */
	if self.c.RootInstr() == nil {
		return self.fail(nil, "computation has no root")
	}
	return nil
}

func (self _Verifier) acyclic() error {
	g := simple.NewDirectedGraph()
	for _, v := range self.c.Instrs {
		if v == nil {
			continue
		}
		if g.Node(int64(v.ID)) == nil {
			g.AddNode(simple.Node(v.ID))
		}
		for _, op := range v.Operands {
			if op == v.ID {
				return self.fail(v, "instruction uses itself")
			}
			g.SetEdge(simple.Edge{F: simple.Node(op), T: simple.Node(v.ID)})
		}
	}
	if _, err := topo.SortStabilized(g, byID); err != nil {
		return self.fail(nil, "instruction graph has a cycle: %v", err)
	}
	return nil
}

func (self _Verifier) operandShape(v *Instruction, i int) Shape {
	return self.c.Instr(v.Operands[i]).Shape
}

func (self _Verifier) shape(v *Instruction) error {
	switch v.Op {
	case OpParameter:
		return nil
	case OpConstant:
		if v.Literal == nil || !v.Literal.Shape.Equal(v.Shape) {
			return self.fail(v, "constant literal does not match %s", v.Shape)
		}
	case OpBroadcast:
		if x := self.operandShape(v, 0); !v.Shape.IsArray() || !x.IsScalar(v.Shape.Type) {
			return self.fail(v, "cannot broadcast %s to %s", x, v.Shape)
		}
	case OpCopy, OpNegate, OpAdd, OpSubtract, OpMultiply, OpMaximum:
		for i := range v.Operands {
			if x := self.operandShape(v, i); !x.Equal(v.Shape) {
				return self.fail(v, "operand %d has shape %s, expect %s", i, x, v.Shape)
			}
		}
	case OpBitcast:
		if x := self.operandShape(v, 0); !x.IsArray() || x.Type != v.Shape.Type || x.Size() != v.Shape.Size() {
			return self.fail(v, "cannot bitcast %s to %s", x, v.Shape)
		}
	case OpCompare:
		x, y := self.operandShape(v, 0), self.operandShape(v, 1)
		if !x.Equal(y) || !v.Shape.Equal(Array(Pred, x.Dims...)) {
			return self.fail(v, "cannot compare %s with %s into %s", x, y, v.Shape)
		}
	case OpSelect:
		p, x, y := self.operandShape(v, 0), self.operandShape(v, 1), self.operandShape(v, 2)
		if !x.Equal(v.Shape) || !y.Equal(v.Shape) || !p.Equal(Array(Pred, v.Shape.Dims...)) {
			return self.fail(v, "cannot select %s between %s and %s", p, x, y)
		}
	case OpTuple:
		s := make([]Shape, len(v.Operands))
		for i := range v.Operands {
			s[i] = self.operandShape(v, i)
		}
		if !v.Shape.Equal(TupleOf(s...)) {
			return self.fail(v, "tuple has shape %s, expect %s", v.Shape, TupleOf(s...))
		}
	case OpGetTupleElement:
		x := self.operandShape(v, 0)
		if !x.IsTuple() || v.Index < 0 || v.Index >= len(x.Elements) {
			return self.fail(v, "index %d out of range for %s", v.Index, x)
		} else if !x.Elements[v.Index].Equal(v.Shape) {
			return self.fail(v, "element %d of %s is not %s", v.Index, x, v.Shape)
		}
	case OpWhile:
		return self.loop(v)
	case OpCustomCall:
		return nil
	default:
		panic("unreachable")
	}
	return nil
}

func (self _Verifier) loop(v *Instruction) error {
	init := self.operandShape(v, 0)
	cond, body := self.r(v.Cond), self.r(v.Body)

	/* both computations must exist */
	if cond == nil || body == nil {
		return self.fail(v, "condition or body computation does not exist")
	}

	/* the loop state must be threaded through unchanged */
	if !v.Shape.Equal(init) {
		return self.fail(v, "while has shape %s, but the init value is %s", v.Shape, init)
	}
	if !takesOne(cond, init) {
		return self.fail(v, "condition %s must take exactly one %s", cond.Name, init)
	}
	if !takesOne(body, init) {
		return self.fail(v, "body %s must take exactly one %s", body.Name, init)
	}
	if r := cond.RootInstr(); r == nil || !r.Shape.IsScalar(Pred) {
		return self.fail(v, "condition %s must return pred[]", cond.Name)
	}
	if r := body.RootInstr(); r == nil || !r.Shape.Equal(init) {
		return self.fail(v, "body %s must return %s", body.Name, init)
	}
	return nil
}

func takesOne(c *Computation, shape Shape) bool {
	if len(c.Params) != 1 {
		return false
	}
	p := c.Param(0)
	return p != nil && p.Shape.Equal(shape)
}
