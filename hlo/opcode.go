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
)

// Opcode is the closed set of operation kinds an Instruction can carry.
type Opcode uint8

const (
	OpParameter Opcode = iota
	OpConstant
	OpBroadcast
	OpCopy
	OpBitcast
	OpNegate
	OpAdd
	OpSubtract
	OpMultiply
	OpMaximum
	OpCompare
	OpSelect
	OpTuple
	OpGetTupleElement
	OpWhile
	OpCustomCall
	_OpMax
)

type _OpTraits struct {
	name   string
	arity  int  // -1 for variadic
	alloc  bool // the result lives in freshly allocated storage
	alias  bool // the result aliases the storage of operand 0
	effect bool // has side effects, never removed as dead code
}

var _traits = [...]_OpTraits{
	OpParameter:       {name: "parameter", arity: 0},
	OpConstant:        {name: "constant", arity: 0},
	OpBroadcast:       {name: "broadcast", arity: 1, alloc: true},
	OpCopy:            {name: "copy", arity: 1, alloc: true},
	OpBitcast:         {name: "bitcast", arity: 1, alias: true},
	OpNegate:          {name: "negate", arity: 1, alloc: true},
	OpAdd:             {name: "add", arity: 2, alloc: true},
	OpSubtract:        {name: "subtract", arity: 2, alloc: true},
	OpMultiply:        {name: "multiply", arity: 2, alloc: true},
	OpMaximum:         {name: "maximum", arity: 2, alloc: true},
	OpCompare:         {name: "compare", arity: 2, alloc: true},
	OpSelect:          {name: "select", arity: 3, alloc: true},
	OpTuple:           {name: "tuple", arity: -1},
	OpGetTupleElement: {name: "get-tuple-element", arity: 1, alias: true},
	OpWhile:           {name: "while", arity: 1},
	OpCustomCall:      {name: "custom-call", arity: -1, effect: true},
}

// every opcode must have an entry in the traits table
var _ = [1]struct{}{}[len(_traits)-int(_OpMax)]

func (self Opcode) String() string {
	if self >= _OpMax {
		return fmt.Sprintf("opcode(%d)", uint8(self))
	} else {
		return _traits[self].name
	}
}

// Arity returns the number of operands the opcode takes, or -1 if it is variadic.
func (self Opcode) Arity() int {
	return _traits[self].arity
}

// Allocates reports whether the result of the opcode is written into
// freshly allocated storage.
func (self Opcode) Allocates() bool {
	return _traits[self].alloc
}

// Aliases reports whether the result of the opcode shares the storage of its
// first operand.
func (self Opcode) Aliases() bool {
	return _traits[self].alias
}

// HasSideEffect reports whether the opcode must be kept even if its result is unused.
func (self Opcode) HasSideEffect() bool {
	return _traits[self].effect
}

// Direction is the comparison performed by a compare instruction.
type Direction uint8

const (
	DirEQ Direction = iota
	DirNE
	DirLT
	DirLE
	DirGT
	DirGE
)

var _directions = [...]string{
	DirEQ: "EQ",
	DirNE: "NE",
	DirLT: "LT",
	DirLE: "LE",
	DirGT: "GT",
	DirGE: "GE",
}

func (self Direction) String() string {
	if int(self) >= len(_directions) {
		return fmt.Sprintf("direction(%d)", uint8(self))
	} else {
		return _directions[self]
	}
}

func (self Direction) apply(x float64, y float64) bool {
	switch self {
	case DirEQ:
		return x == y
	case DirNE:
		return x != y
	case DirLT:
		return x < y
	case DirLE:
		return x <= y
	case DirGT:
		return x > y
	case DirGE:
		return x >= y
	default:
		panic("unreachable")
	}
}
