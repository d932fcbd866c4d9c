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

	"github.com/pkg/errors"
)

// Builder creates a computation instruction by instruction, inferring the
// shape of each one. The first error is remembered and reported by Build,
// later calls return NoInstr.
type Builder struct {
	c   *Computation
	err error
	ids map[Opcode]int
}

func NewBuilder(name string) *Builder {
	return &Builder{
		c:   &Computation{Name: name, Root: NoInstr},
		ids: make(map[Opcode]int),
	}
}

// OnThread sets the execution thread of the computation being built.
func (self *Builder) OnThread(thread string) *Builder {
	self.c.Thread = thread
	return self
}

func (self *Builder) fail(format string, args ...interface{}) InstrID {
	if self.err == nil {
		self.err = errors.Errorf("hlo: %s: "+format, append([]interface{}{self.c.Name}, args...)...)
	}
	return NoInstr
}

func (self *Builder) shapes(ops ...InstrID) ([]Shape, bool) {
	ret := make([]Shape, len(ops))
	for i, op := range ops {
		if v := self.c.Instr(op); v == nil {
			self.fail("invalid operand %d", op)
			return nil, false
		} else {
			ret[i] = v.Shape
		}
	}
	return ret, self.err == nil
}

func (self *Builder) add(v *Instruction) InstrID {
	if self.err != nil {
		return NoInstr
	}
	n := self.ids[v.Op]
	self.ids[v.Op] = n + 1
	v.ID = InstrID(len(self.c.Instrs))
	if n == 0 {
		v.Name = v.Op.String()
	} else {
		v.Name = fmt.Sprintf("%s.%d", v.Op, n)
	}
	if v.Op != OpWhile {
		v.Cond, v.Body = NoComputation, NoComputation
	}
	self.c.Instrs = append(self.c.Instrs, v)
	return v.ID
}

// Parameter adds the next parameter of the computation, parameters must be
// added in order.
func (self *Builder) Parameter(num int, shape Shape) InstrID {
	if num != len(self.c.Params) {
		return self.fail("parameter %d added out of order", num)
	}
	id := self.add(&Instruction{Op: OpParameter, Index: num, Shape: shape.Clone()})
	if id != NoInstr {
		self.c.Params = append(self.c.Params, id)
	}
	return id
}

func (self *Builder) Constant(lit *Literal) InstrID {
	return self.add(&Instruction{Op: OpConstant, Literal: lit.Clone(), Shape: lit.Shape.Clone()})
}

// ConstantScalar adds a rank-0 constant.
func (self *Builder) ConstantScalar(t ElementType, v float64) InstrID {
	return self.Constant(ScalarLiteral(t, v))
}

// Broadcast fills a freshly allocated array of the given shape with a scalar.
func (self *Builder) Broadcast(x InstrID, shape Shape) InstrID {
	if s, ok := self.shapes(x); !ok {
		return NoInstr
	} else if !s[0].IsScalar(shape.Type) || !shape.IsArray() {
		return self.fail("cannot broadcast %s to %s", s[0], shape)
	} else {
		return self.add(&Instruction{Op: OpBroadcast, Operands: []InstrID{x}, Shape: shape.Clone()})
	}
}

func (self *Builder) Copy(x InstrID) InstrID {
	if s, ok := self.shapes(x); !ok {
		return NoInstr
	} else {
		return self.add(&Instruction{Op: OpCopy, Operands: []InstrID{x}, Shape: s[0]})
	}
}

// Bitcast reinterprets an array as another shape with the same element type
// and element count, sharing its storage.
func (self *Builder) Bitcast(x InstrID, shape Shape) InstrID {
	if s, ok := self.shapes(x); !ok {
		return NoInstr
	} else if !s[0].IsArray() || s[0].Type != shape.Type || s[0].Size() != shape.Size() {
		return self.fail("cannot bitcast %s to %s", s[0], shape)
	} else {
		return self.add(&Instruction{Op: OpBitcast, Operands: []InstrID{x}, Shape: shape.Clone()})
	}
}

func (self *Builder) Negate(x InstrID) InstrID {
	if s, ok := self.shapes(x); !ok {
		return NoInstr
	} else if !s[0].IsArray() || s[0].Type == Pred {
		return self.fail("cannot negate %s", s[0])
	} else {
		return self.add(&Instruction{Op: OpNegate, Operands: []InstrID{x}, Shape: s[0]})
	}
}

func (self *Builder) binary(op Opcode, x InstrID, y InstrID) InstrID {
	if s, ok := self.shapes(x, y); !ok {
		return NoInstr
	} else if !s[0].IsArray() || !s[0].Equal(s[1]) {
		return self.fail("%s: incompatible operands %s and %s", op, s[0], s[1])
	} else {
		return self.add(&Instruction{Op: op, Operands: []InstrID{x, y}, Shape: s[0]})
	}
}

func (self *Builder) Add(x InstrID, y InstrID) InstrID      { return self.binary(OpAdd, x, y) }
func (self *Builder) Subtract(x InstrID, y InstrID) InstrID { return self.binary(OpSubtract, x, y) }
func (self *Builder) Multiply(x InstrID, y InstrID) InstrID { return self.binary(OpMultiply, x, y) }
func (self *Builder) Maximum(x InstrID, y InstrID) InstrID  { return self.binary(OpMaximum, x, y) }

// Compare compares two arrays elementwise, producing a pred array.
func (self *Builder) Compare(x InstrID, y InstrID, dir Direction) InstrID {
	if s, ok := self.shapes(x, y); !ok {
		return NoInstr
	} else if !s[0].IsArray() || !s[0].Equal(s[1]) {
		return self.fail("compare: incompatible operands %s and %s", s[0], s[1])
	} else {
		return self.add(&Instruction{Op: OpCompare, Operands: []InstrID{x, y}, Direction: dir, Shape: Array(Pred, s[0].Dims...)})
	}
}

// Select picks elements of x where p is true and elements of y otherwise.
func (self *Builder) Select(p InstrID, x InstrID, y InstrID) InstrID {
	if s, ok := self.shapes(p, x, y); !ok {
		return NoInstr
	} else if !s[1].IsArray() || !s[1].Equal(s[2]) || !s[0].Equal(Array(Pred, s[1].Dims...)) {
		return self.fail("select: incompatible operands %s, %s and %s", s[0], s[1], s[2])
	} else {
		return self.add(&Instruction{Op: OpSelect, Operands: []InstrID{p, x, y}, Shape: s[1]})
	}
}

func (self *Builder) Tuple(elems ...InstrID) InstrID {
	if s, ok := self.shapes(elems...); !ok {
		return NoInstr
	} else {
		return self.add(&Instruction{Op: OpTuple, Operands: append([]InstrID(nil), elems...), Shape: TupleOf(s...)})
	}
}

func (self *Builder) GetTupleElement(x InstrID, i int) InstrID {
	if s, ok := self.shapes(x); !ok {
		return NoInstr
	} else if !s[0].IsTuple() || i < 0 || i >= len(s[0].Elements) {
		return self.fail("get-tuple-element: index %d out of range for %s", i, s[0])
	} else {
		return self.add(&Instruction{Op: OpGetTupleElement, Operands: []InstrID{x}, Index: i, Shape: s[0].Elements[i].Clone()})
	}
}

// While adds a loop over the init value. The condition and body are checked
// against the init shape by Verify, not here.
func (self *Builder) While(cond ComputationID, body ComputationID, init InstrID) InstrID {
	if s, ok := self.shapes(init); !ok {
		return NoInstr
	} else {
		return self.add(&Instruction{Op: OpWhile, Operands: []InstrID{init}, Cond: cond, Body: body, Shape: s[0]})
	}
}

// CustomCall adds an opaque call with side effects.
func (self *Builder) CustomCall(target string, shape Shape, ops ...InstrID) InstrID {
	if _, ok := self.shapes(ops...); !ok {
		return NoInstr
	} else {
		return self.add(&Instruction{Op: OpCustomCall, Operands: append([]InstrID(nil), ops...), Target: target, Shape: shape.Clone()})
	}
}

// Build finishes the computation with the given root.
func (self *Builder) Build(root InstrID) (*Computation, error) {
	if self.err != nil {
		return nil, self.err
	}
	if self.c.Instr(root) == nil {
		return nil, errors.Errorf("hlo: %s: invalid root %d", self.c.Name, root)
	}
	self.c.Root = root
	return self.c, nil
}

// MustBuild is like Build but panics on error.
func (self *Builder) MustBuild(root InstrID) *Computation {
	c, err := self.Build(root)
	if err != nil {
		panic(err)
	}
	return c
}
