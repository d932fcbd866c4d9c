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
	"github.com/oleiade/lane"

	"github.com/cloudwego/whilebuf/hlo"
)

// _WhileWalker yields the while instructions of a computation in pre-order
// from the root, visiting operands in order.
type _WhileWalker struct {
	c    *hlo.Computation
	s    *lane.Stack
	v    []bool
	stop bool
}

func newWhileWalker(c *hlo.Computation, stop bool) *_WhileWalker {
	s := lane.NewStack()
	s.Push(c.Root)
	return &_WhileWalker{c: c, s: s, v: make([]bool, len(c.Instrs)), stop: stop}
}

func (self *_WhileWalker) next() *hlo.Instruction {
	for !self.s.Empty() {
		id := self.s.Pop().(hlo.InstrID)
		if self.v[id] {
			continue
		}

		/* mark as visited */
		p := self.c.Instr(id)
		self.v[id] = true

		/* do not look past the while if asked to */
		if p.Op != hlo.OpWhile || !self.stop {
			for i := len(p.Operands) - 1; i >= 0; i-- {
				if !self.v[p.Operands[i]] {
					self.s.Push(p.Operands[i])
				}
			}
		}

		/* found one */
		if p.Op == hlo.OpWhile {
			return p
		}
	}
	return nil
}

// NestIter iterates over the (outer, inner) while pairs of a computation. The
// inner while is reachable from the root of the outer body without passing
// through another while.
type NestIter struct {
	m *hlo.Module
	c *hlo.Computation
	w *_WhileWalker
	n *_WhileWalker
	o *hlo.Instruction
	i *hlo.Instruction
}

func NestsOf(m *hlo.Module, c *hlo.Computation) *NestIter {
	ret := &NestIter{m: m, c: c}
	ret.Reset()
	return ret
}

// Reset restarts the iteration from the beginning.
func (self *NestIter) Reset() {
	self.w = newWhileWalker(self.c, false)
	self.n = nil
	self.o = nil
	self.i = nil
}

func (self *NestIter) Next() bool {
	for {
		if self.n != nil {
			if p := self.n.next(); p != nil {
				self.i = p
				return true
			}
		}

		/* move on to the next outer loop */
		if self.o = self.w.next(); self.o == nil {
			self.n, self.i = nil, nil
			return false
		}

		/* scan the body of the outer loop */
		if body := self.m.Computation(self.o.Body); body != nil {
			self.n = newWhileWalker(body, true)
		} else {
			self.n = nil
		}
	}
}

func (self *NestIter) Outer() *hlo.Instruction {
	return self.o
}

func (self *NestIter) Inner() *hlo.Instruction {
	return self.i
}

func (self *NestIter) ForEach(action func(outer *hlo.Instruction, inner *hlo.Instruction)) {
	for self.Next() {
		action(self.o, self.i)
	}
}
