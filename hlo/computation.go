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
	"strings"
)

// DefaultThread is the execution thread of computations that do not name one.
const DefaultThread = "main"

// Computation is a DAG of instructions with an ordered list of parameters and
// a single root. Instructions are stored in an arena and referred to by ID,
// removed instructions leave a nil hole until the computation is compacted.
type Computation struct {
	Name   string
	Thread string
	Params []InstrID
	Root   InstrID
	Instrs []*Instruction
}

// ExecutionThread returns the execution thread of the computation.
func (self *Computation) ExecutionThread() string {
	if self.Thread == "" {
		return DefaultThread
	} else {
		return self.Thread
	}
}

// Instr returns the instruction with the given ID, or nil if it does not exist.
func (self *Computation) Instr(id InstrID) *Instruction {
	if id < 0 || int(id) >= len(self.Instrs) {
		return nil
	} else {
		return self.Instrs[id]
	}
}

func (self *Computation) Param(i int) *Instruction {
	return self.Instr(self.Params[i])
}

func (self *Computation) RootInstr() *Instruction {
	return self.Instr(self.Root)
}

// Users returns, for every instruction, the distinct instructions using it
// as an operand, in ID order.
func (self *Computation) Users() [][]InstrID {
	ret := make([][]InstrID, len(self.Instrs))
	for _, v := range self.Instrs {
		if v == nil {
			continue
		}
		for i, op := range v.Operands {
			if !operandSeen(v.Operands[:i], op) {
				ret[op] = append(ret[op], v.ID)
			}
		}
	}
	return ret
}

func operandSeen(ops []InstrID, id InstrID) bool {
	for _, v := range ops {
		if v == id {
			return true
		}
	}
	return false
}

// Remove deletes an instruction from the arena. The caller is responsible for
// making sure nothing refers to it any more.
func (self *Computation) Remove(id InstrID) {
	self.Instrs[id] = nil
}

// Compact renumbers the instructions to close the holes left by Remove,
// keeping their relative order.
func (self *Computation) Compact() {
	idx := 0
	remap := make([]InstrID, len(self.Instrs))

	/* Phase 1: assign the new IDs */
	for i, v := range self.Instrs {
		if v == nil {
			remap[i] = NoInstr
		} else {
			remap[i] = InstrID(idx)
			idx++
		}
	}

	/* Phase 2: move the instructions and rewrite the references */
	ins := self.Instrs
	self.Instrs = make([]*Instruction, 0, idx)
	for _, v := range ins {
		if v != nil {
			v.ID = remap[v.ID]
			for i, op := range v.Operands {
				v.Operands[i] = remap[op]
			}
			self.Instrs = append(self.Instrs, v)
		}
	}

	/* Phase 3: rewrite the parameters and the root */
	for i, p := range self.Params {
		self.Params[i] = remap[p]
	}
	self.Root = remap[self.Root]
}

// Clone returns a deep copy of the computation. Called computations are
// shared by ID.
func (self *Computation) Clone() *Computation {
	ret := &Computation{
		Name:   self.Name,
		Thread: self.Thread,
		Root:   self.Root,
		Params: append([]InstrID(nil), self.Params...),
		Instrs: make([]*Instruction, len(self.Instrs)),
	}
	for i, v := range self.Instrs {
		if v != nil {
			ret.Instrs[i] = v.Clone()
		}
	}
	return ret
}

// PostOrder returns the instructions reachable from the root, operands
// before users, visiting operands in order.
func (self *Computation) PostOrder() []*Instruction {
	ret := make([]*Instruction, 0, len(self.Instrs))
	mark := make([]bool, len(self.Instrs))

	var visit func(id InstrID)
	visit = func(id InstrID) {
		if mark[id] {
			return
		}
		mark[id] = true
		for _, op := range self.Instrs[id].Operands {
			visit(op)
		}
		ret = append(ret, self.Instrs[id])
	}

	/* parameters are always part of the computation */
	for _, p := range self.Params {
		visit(p)
	}

	/* side effects are kept even if nothing uses them */
	for _, v := range self.Instrs {
		if v != nil && v.Op.HasSideEffect() {
			visit(v.ID)
		}
	}

	visit(self.Root)
	return ret
}

func (self *Computation) operandNames(v *Instruction) string {
	ret := make([]string, len(v.Operands))
	for i, op := range v.Operands {
		if x := self.Instr(op); x != nil {
			ret[i] = "%" + x.Name
		} else {
			ret[i] = fmt.Sprintf("%%<%d>", op)
		}
	}
	return strings.Join(ret, ", ")
}

func (self *Computation) format(m *Module, v *Instruction) string {
	var attrs []string
	switch v.Op {
	case OpParameter, OpGetTupleElement:
		attrs = append(attrs, fmt.Sprintf("index=%d", v.Index))
	case OpConstant:
		attrs = append(attrs, "value="+v.Literal.String())
	case OpCompare:
		attrs = append(attrs, "direction="+v.Direction.String())
	case OpWhile:
		attrs = append(attrs, "condition=%"+m.nameOf(v.Cond), "body=%"+m.nameOf(v.Body))
	case OpCustomCall:
		attrs = append(attrs, fmt.Sprintf("target=%q", v.Target))
	}
	ret := fmt.Sprintf("%%%s = %s %s(%s)", v.Name, v.Shape, v.Op, self.operandNames(v))
	if len(attrs) != 0 {
		ret += ", " + strings.Join(attrs, ", ")
	}
	if v.ID == self.Root {
		ret = "ROOT " + ret
	}
	return ret
}

func (self *Computation) dump(m *Module) string {
	buf := []string{fmt.Sprintf("%%%s, thread=%s {", self.Name, self.ExecutionThread())}
	for _, v := range self.Instrs {
		if v != nil {
			buf = append(buf, "  "+self.format(m, v))
		}
	}
	buf = append(buf, "}")
	return strings.Join(buf, "\n")
}

// String returns the text form of the computation, called computations are
// printed as "%<id>".
func (self *Computation) String() string {
	return self.dump(nil)
}
