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

	"github.com/oleiade/lane"
)

// Module owns a set of computations, exactly one of which is the entry.
type Module struct {
	Name         string
	Entry        ComputationID
	Computations []*Computation
}

func NewModule(name string) *Module {
	return &Module{Name: name, Entry: NoComputation}
}

// AddComputation appends a computation to the module and returns its ID.
func (self *Module) AddComputation(c *Computation) ComputationID {
	self.Computations = append(self.Computations, c)
	return ComputationID(len(self.Computations) - 1)
}

// AddEntryComputation appends a computation and makes it the entry.
func (self *Module) AddEntryComputation(c *Computation) ComputationID {
	self.Entry = self.AddComputation(c)
	return self.Entry
}

// Computation returns the computation with the given ID, or nil if it does not exist.
func (self *Module) Computation(id ComputationID) *Computation {
	if id < 0 || int(id) >= len(self.Computations) {
		return nil
	} else {
		return self.Computations[id]
	}
}

func (self *Module) EntryComputation() *Computation {
	return self.Computation(self.Entry)
}

// Replace puts c in the slot of computation id and returns the previous
// occupant. Every instruction calling id now calls c.
func (self *Module) Replace(id ComputationID, c *Computation) *Computation {
	old := self.Computations[id]
	self.Computations[id] = c
	return old
}

// CallSite identifies an instruction calling a computation.
type CallSite struct {
	Caller ComputationID
	Instr  InstrID
}

// CallSites returns, for every computation, the instructions calling it.
func (self *Module) CallSites() map[ComputationID][]CallSite {
	ret := make(map[ComputationID][]CallSite)
	for id, c := range self.Computations {
		if c == nil {
			continue
		}
		for _, v := range c.Instrs {
			if v == nil {
				continue
			}
			for _, callee := range v.Called() {
				ret[callee] = append(ret[callee], CallSite{Caller: ComputationID(id), Instr: v.ID})
			}
		}
	}
	return ret
}

// Reachable returns the IDs of the computations reachable from the entry in
// breadth-first order, callees in the order they are called.
func (self *Module) Reachable() []ComputationID {
	if self.Computation(self.Entry) == nil {
		return nil
	}

	var ret []ComputationID
	q := lane.NewQueue()
	seen := map[ComputationID]bool{self.Entry: true}

	/* walk the call graph */
	for q.Enqueue(self.Entry); !q.Empty(); {
		id := q.Dequeue().(ComputationID)
		ret = append(ret, id)
		for _, v := range self.Computations[id].PostOrder() {
			for _, callee := range v.Called() {
				if !seen[callee] && self.Computation(callee) != nil {
					seen[callee] = true
					q.Enqueue(callee)
				}
			}
		}
	}
	return ret
}

func (self *Module) nameOf(id ComputationID) string {
	if self == nil {
		return fmt.Sprintf("<%d>", id)
	} else if c := self.Computation(id); c != nil {
		return c.Name
	} else {
		return fmt.Sprintf("<%d>", id)
	}
}

// String returns the text form of the module, the entry computation is marked
// with "ENTRY".
func (self *Module) String() string {
	buf := []string{fmt.Sprintf("HloModule %s", self.Name)}
	for id, c := range self.Computations {
		if c == nil {
			continue
		}
		s := c.dump(self)
		if ComputationID(id) == self.Entry {
			s = "ENTRY " + s
		}
		buf = append(buf, "", s)
	}
	return strings.Join(buf, "\n")
}
