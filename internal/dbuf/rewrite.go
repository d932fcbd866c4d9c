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

	"github.com/oleiade/lane"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/cloudwego/whilebuf/hlo"
	"github.com/cloudwego/whilebuf/internal/opts"
)

// InvariantError occures when a rewrite produces a computation that does not
// pass verification. Nothing is committed when it happens.
type InvariantError struct {
	ModuleID    int64
	Computation string
	Cause       error
}

func (self InvariantError) Error() string {
	return fmt.Sprintf("InvariantError(module %d, %s): %v", self.ModuleID, self.Computation, self.Cause)
}

func (self InvariantError) Unwrap() error {
	return self.Cause
}

// Txn holds the rewritten copies of the computations touched by one rewrite.
// The module is only modified by Commit.
type Txn struct {
	m    *hlo.Module
	ids  []hlo.ComputationID
	new  map[hlo.ComputationID]*hlo.Computation
	old  map[hlo.ComputationID]*hlo.Computation
	done bool
}

func newTxn(m *hlo.Module) *Txn {
	return &Txn{
		m:   m,
		new: make(map[hlo.ComputationID]*hlo.Computation),
		old: make(map[hlo.ComputationID]*hlo.Computation),
	}
}

// stage returns the working copy of computation id.
func (self *Txn) stage(id hlo.ComputationID) *hlo.Computation {
	if c, ok := self.new[id]; ok {
		return c
	}
	c := self.m.Computation(id).Clone()
	self.ids = append(self.ids, id)
	self.new[id] = c
	return c
}

// Resolve looks up a computation as it would be after the commit.
func (self *Txn) Resolve(id hlo.ComputationID) *hlo.Computation {
	if c, ok := self.new[id]; ok {
		return c
	} else {
		return self.m.Computation(id)
	}
}

// Computations returns the IDs of the staged computations in staging order.
func (self *Txn) Computations() []hlo.ComputationID {
	return slices.Clone(self.ids)
}

func (self *Txn) Commit() {
	if self.done {
		panic("dbuf: transaction committed twice")
	}
	for _, id := range self.ids {
		self.old[id] = self.m.Replace(id, self.new[id])
	}
	self.done = true
}

// Rollback restores the computations replaced by Commit.
func (self *Txn) Rollback() {
	if !self.done {
		return
	}
	for i := len(self.ids) - 1; i >= 0; i-- {
		self.m.Replace(self.ids[i], self.old[self.ids[i]])
	}
	self.done = false
}

// testHookStaged, when set, sees every transaction before it is verified.
var testHookStaged func(txn *Txn)

// Rewriter collapses matched double-buffer groups.
type Rewriter struct {
	m  *hlo.Module
	o  *opts.Options
	id int64
}

func NewRewriter(m *hlo.Module, o *opts.Options, moduleID int64) *Rewriter {
	return &Rewriter{m: m, o: o, id: moduleID}
}

func (self *Rewriter) invariant(c *hlo.Computation, format string, args ...interface{}) error {
	return InvariantError{ModuleID: self.id, Computation: c.Name, Cause: errors.Errorf(format, args...)}
}

// Rewrite stages the removal of the spare slot of g. The returned transaction
// has been verified but not committed.
func (self *Rewriter) Rewrite(outer *hlo.Instruction, inner *hlo.Instruction, g Group) (*Txn, error) {
	txn := newTxn(self.m)
	ob := txn.stage(outer.Body)
	body := txn.stage(inner.Body)
	cond := txn.stage(inner.Cond)

	/* Phase 1: narrow the loop state seen by the body and the condition */
	if err := self.narrowParam(body, g.Spare); err != nil {
		return nil, err
	}
	if err := self.narrowParam(cond, g.Spare); err != nil {
		return nil, err
	}

	/* Phase 2: the body writes the live slot in place and drops the spare one */
	root := body.RootInstr()
	if root.Op != hlo.OpTuple || root.Operands[g.Live] != g.Writer {
		return nil, self.invariant(body, "root %s does not write %d into slot %d", root.Name, g.Writer, g.Live)
	}
	root.Operands = slices.Delete(root.Operands, g.Spare, g.Spare+1)
	root.Shape = root.Shape.WithoutElement(g.Spare)
	sweep(body, append(slices.Clone(g.Copies), g.Reader)...)

	/* Phase 3: the inner loop starts from the live buffer only */
	w := ob.Instr(inner.ID)
	if w == nil || w.Op != hlo.OpWhile {
		return nil, self.invariant(ob, "instruction %d is not the inner loop", inner.ID)
	}
	init := ob.Instr(w.Operands[0])
	if init.Op != hlo.OpTuple {
		return nil, self.invariant(ob, "init value %s of %s is not a tuple", init.Name, w.Name)
	}
	spare := init.Operands[g.Spare]
	init.Operands = slices.Delete(init.Operands, g.Spare, g.Spare+1)
	init.Shape = init.Shape.WithoutElement(g.Spare)
	w.Shape = init.Shape.Clone()

	/* Phase 4: renumber the users of the loop result */
	for _, v := range ob.Instrs {
		if v == nil || v.Op != hlo.OpGetTupleElement || v.Operands[0] != w.ID {
			continue
		}
		if v.Index == g.Spare {
			return nil, self.invariant(ob, "%s reads the spare slot %d", v.Name, g.Spare)
		}
		if v.Index > g.Spare {
			v.Index--
		}
	}

	/* Phase 5: drop the spare allocation unless something else needs it */
	sweep(ob, spare)

	/* Phase 6: close the holes and check the result */
	for _, id := range txn.ids {
		txn.new[id].Compact()
	}
	if testHookStaged != nil {
		testHookStaged(txn)
	}
	if self.o.Verify {
		for _, id := range txn.ids {
			c := txn.new[id]
			if err := hlo.VerifyComputation(c, txn.Resolve); err != nil {
				return nil, InvariantError{ModuleID: self.id, Computation: c.Name, Cause: err}
			}
		}
	}
	return txn, nil
}

// narrowParam removes slot i from the tuple parameter of c and renumbers the
// get-tuple-elements reading the slots after it.
func (self *Rewriter) narrowParam(c *hlo.Computation, i int) error {
	p := c.Param(0)
	p.Shape = p.Shape.WithoutElement(i)
	for _, v := range c.Instrs {
		if v == nil || v.Op != hlo.OpGetTupleElement || v.Operands[0] != p.ID {
			continue
		}
		if v.Index == i {
			return self.invariant(c, "%s reads the spare slot %d", v.Name, i)
		}
		if v.Index > i {
			v.Index--
			v.Shape = p.Shape.Elements[v.Index].Clone()
		}
	}
	return nil
}

// sweep removes the given instructions and, transitively, their operands as
// long as they have no users left. Parameters, side effects and the root are
// never removed.
func sweep(c *hlo.Computation, seeds ...hlo.InstrID) {
	q := lane.NewQueue()
	users := c.Users()

	/* add all the seeds */
	for _, id := range seeds {
		q.Enqueue(id)
	}

	/* remove until nothing else becomes dead */
	for !q.Empty() {
		id := q.Dequeue().(hlo.InstrID)
		p := c.Instr(id)

		/* still needed by something */
		if p == nil || id == c.Root || p.Op == hlo.OpParameter || p.Op.HasSideEffect() || len(users[id]) != 0 {
			continue
		}

		/* release the operands */
		for _, op := range p.Operands {
			users[op] = without(users[op], id)
			q.Enqueue(op)
		}
		c.Remove(id)
	}
}

func without(ids []hlo.InstrID, id hlo.InstrID) []hlo.InstrID {
	ret := ids[:0]
	for _, v := range ids {
		if v != id {
			ret = append(ret, v)
		}
	}
	return ret
}
