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

package dbuf

import (
	"fmt"

	"github.com/cloudwego/whilebuf/hlo"
	"github.com/cloudwego/whilebuf/internal/opts"
)

// Group is a pair of loop state slots of an inner while that ping-pong a
// value. Every iteration writes the new value into Live and forwards the
// previous value of Live into Spare, so the buffer just read becomes the
// buffer written next.
type Group struct {
	Live   int
	Spare  int
	Reader hlo.InstrID   // get-tuple-element of Live in the body
	Writer hlo.InstrID   // the value written into Live
	Copies []hlo.InstrID // copies between Reader and the Spare slot of the root
}

func (self Group) String() string {
	return fmt.Sprintf("{live=%d, spare=%d, copies=%d}", self.Live, self.Spare, len(self.Copies))
}

// Matcher recognizes double-buffered inner loops.
type Matcher struct {
	m *hlo.Module
	o *opts.Options
	n map[hlo.ComputationID]int
}

func NewMatcher(m *hlo.Module, o *opts.Options) *Matcher {
	n := make(map[hlo.ComputationID]int)
	for id, sites := range m.CallSites() {
		n[id] = len(sites)
	}
	return &Matcher{m: m, o: o, n: n}
}

// slotReads collects the tuple slots of the parameter of c that are read.
// It fails if the parameter is used as a whole.
func slotReads(c *hlo.Computation) (map[int]bool, bool) {
	p := c.Params[0]
	ret := make(map[int]bool)
	for _, v := range c.Instrs {
		if v == nil || !usesOperand(v, p) {
			continue
		}
		if v.Op != hlo.OpGetTupleElement {
			return nil, false
		}
		ret[v.Index] = true
	}
	if c.Root == p {
		return nil, false
	}
	return ret, true
}

func usesOperand(v *hlo.Instruction, id hlo.InstrID) bool {
	for _, op := range v.Operands {
		if op == id {
			return true
		}
	}
	return false
}

// forwards strips a chain of copies and reports which slot of the parameter
// it forwards, or -1.
func forwards(c *hlo.Computation, id hlo.InstrID) (slot int, copies []hlo.InstrID) {
	p := c.Instr(id)
	for p.Op == hlo.OpCopy {
		copies = append(copies, p.ID)
		p = c.Instr(p.Operand(0))
	}
	if p.Op == hlo.OpGetTupleElement && p.Operand(0) == c.Params[0] {
		return p.Index, copies
	} else {
		return -1, copies
	}
}

// Match inspects an inner while of outer body ob and returns the first
// double-buffer group found, slots ordered by Live then Spare.
func (self *Matcher) Match(ob *hlo.Computation, inner *hlo.Instruction) (Group, bool) {
	state := inner.Shape
	cond, body := self.m.Computation(inner.Cond), self.m.Computation(inner.Body)

	/* need at least two slots */
	if !state.IsTuple() || len(state.Elements) < 2 {
		return Group{}, false
	}

	/* body and condition are rewritten, so they must not be shared */
	if inner.Cond == inner.Body || self.n[inner.Cond] != 1 || self.n[inner.Body] != 1 {
		return Group{}, false
	}

	/* the body must produce its state with a tuple */
	root := body.RootInstr()
	if root.Op != hlo.OpTuple {
		return Group{}, false
	}

	/* the parameters must only be accessed slot by slot */
	br, ok := slotReads(body)
	if !ok {
		return Group{}, false
	}
	cr, ok := slotReads(cond)
	if !ok {
		return Group{}, false
	}

	/* so must the result of the loop, and the spare slot of the result is
	 * never read, consumers picking between both slots are not rewritten */
	if ob.Root == inner.ID {
		return Group{}, false
	}
	res := make(map[int]bool)
	for _, u := range ob.Users()[inner.ID] {
		if v := ob.Instr(u); v.Op != hlo.OpGetTupleElement {
			return Group{}, false
		} else {
			res[v.Index] = true
		}
	}

	/* try every pair of slots */
	for a := range state.Elements {
		for b := range state.Elements {
			if g, ok := self.pair(body, a, b, br[b] || cr[b] || res[b]); ok {
				return g, true
			}
		}
	}
	return Group{}, false
}

func (self *Matcher) pair(body *hlo.Computation, a int, b int, read bool) (Group, bool) {
	root := body.RootInstr()
	sa, sb := body.Param(0).Shape.Elements[a], body.Param(0).Shape.Elements[b]

	/* the spare slot must never be observed */
	if a == b || read {
		return Group{}, false
	}

	/* both slots must be arrays of the same shape */
	if !sa.IsArray() || !sa.Equal(sb) {
		return Group{}, false
	}

	/* the spare slot receives the previous live value */
	slot, copies := forwards(body, root.Operands[b])
	if slot != a || !self.o.FollowCopies(len(copies)) {
		return Group{}, false
	}

	/* and the live slot receives a new one */
	if slot, _ = forwards(body, root.Operands[a]); slot != -1 {
		return Group{}, false
	}

	/* the end of the copy chain is the reader */
	reader := root.Operands[b]
	if len(copies) != 0 {
		reader = body.Instr(copies[len(copies)-1]).Operands[0]
	}
	return Group{
		Live:   a,
		Spare:  b,
		Reader: reader,
		Writer: root.Operands[a],
		Copies: copies,
	}, true
}
