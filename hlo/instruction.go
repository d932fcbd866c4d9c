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

// InstrID is the index of an instruction in the arena of its computation.
type InstrID int

// ComputationID is the index of a computation in the arena of its module.
type ComputationID int

const (
	NoInstr       InstrID       = -1
	NoComputation ComputationID = -1
)

// Instruction is a single operation node. Operands refer to instructions of
// the same computation, called computations are referred to by ID.
type Instruction struct {
	ID        InstrID
	Name      string
	Op        Opcode
	Operands  []InstrID
	Shape     Shape
	Index     int
	Literal   *Literal
	Direction Direction
	Cond      ComputationID
	Body      ComputationID
	Target    string
}

func (self *Instruction) Operand(i int) InstrID {
	return self.Operands[i]
}

// Called returns the computations invoked by this instruction.
func (self *Instruction) Called() []ComputationID {
	if self.Op == OpWhile {
		return []ComputationID{self.Cond, self.Body}
	} else {
		return nil
	}
}

func (self *Instruction) Clone() *Instruction {
	ret := *self
	ret.Shape = self.Shape.Clone()
	ret.Operands = append([]InstrID(nil), self.Operands...)
	if self.Literal != nil {
		ret.Literal = self.Literal.Clone()
	}
	return &ret
}
