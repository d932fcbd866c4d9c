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
	"github.com/cloudwego/whilebuf/hlo"
)

// Scope decides whether the buffers of a double-buffer group are allocated
// by the outer loop body, outside of the inner loop.
type Scope struct {
	m *hlo.Module
	t hlo.ThreadSet
}

func NewScope(m *hlo.Module, threads hlo.ThreadSet) *Scope {
	return &Scope{m: m, t: threads}
}

// Collapsible reports whether the group g of inner can be collapsed into a
// single buffer. It only accepts buffers freshly allocated once per outer
// iteration that nothing but the inner loop can observe.
func (self *Scope) Collapsible(outer *hlo.Instruction, inner *hlo.Instruction, g Group) bool {
	ob := self.m.Computation(outer.Body)
	cond, body := self.m.Computation(inner.Cond), self.m.Computation(inner.Body)

	/* every computation we are going to touch must be allowed */
	if !self.t.AllowsAll(ob, cond, body) {
		return false
	}

	/* the inner loop must live in the outer body */
	if ob.Instr(inner.ID) != inner {
		return false
	}

	/* the init value must be a tuple used by nothing else */
	users := ob.Users()
	init := ob.Instr(inner.Operands[0])
	if init.Op != hlo.OpTuple || !soleUser(users, init.ID, inner.ID) {
		return false
	}

	/* each buffer must fill exactly one slot */
	if occurrences(init.Operands, init.Operands[g.Live]) != 1 || occurrences(init.Operands, init.Operands[g.Spare]) != 1 {
		return false
	}

	/* find out where both buffers are allocated */
	live, ok := establish(ob, users, init.Operands[g.Live], init.ID)
	if !ok {
		return false
	}
	spare, ok := establish(ob, users, init.Operands[g.Spare], init.ID)
	if !ok {
		return false
	}

	/* they must not be the same buffer */
	return live != spare
}

func soleUser(users [][]hlo.InstrID, id hlo.InstrID, user hlo.InstrID) bool {
	return len(users[id]) == 1 && users[id][0] == user
}

func occurrences(ids []hlo.InstrID, id hlo.InstrID) (n int) {
	for _, v := range ids {
		if v == id {
			n++
		}
	}
	return
}

// establish follows the aliases of id up to the instruction that allocates
// its storage. Every link must be used exclusively by the next one.
func establish(c *hlo.Computation, users [][]hlo.InstrID, id hlo.InstrID, user hlo.InstrID) (hlo.InstrID, bool) {
	for {
		if !soleUser(users, id, user) {
			return hlo.NoInstr, false
		}

		/* follow the aliases down to the storage */
		p := c.Instr(id)
		switch {
		case p.Op.Allocates():
			return id, true
		case p.Op == hlo.OpGetTupleElement:
			x := c.Instr(p.Operand(0))
			if x.Op != hlo.OpTuple || !soleUser(users, x.ID, id) {
				return hlo.NoInstr, false
			}
			id, user = x.Operand(p.Index), x.ID
		case p.Op.Aliases():
			id, user = p.Operand(0), id
		default:
			return hlo.NoInstr, false
		}
	}
}
