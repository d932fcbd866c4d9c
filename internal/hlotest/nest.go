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

// Package hlotest builds the loop nests used by the tests of the pass.
package hlotest

import (
	"fmt"

	"github.com/cloudwego/whilebuf/hlo"
)

// Alloc selects how the outer body establishes the storage of a slot.
type Alloc uint8

const (
	Broadcast Alloc = iota // fresh buffer filled with a constant
	CopyState              // fresh copy of the outer loop state
	State                  // the outer loop state itself
	Constant               // a literal
	Bitcast                // fresh buffer seen through a bitcast
	TupleElement           // fresh buffer wrapped in a tuple and extracted again
	BitcastState           // the outer loop state seen through a bitcast
)

// Config describes a two-level loop nest. The inner loop state is
// (counter, vec, vec), the inner body computes vec*0.5+1 from the live slot
// and forwards the previous live value into the spare one.
type Config struct {
	OuterTrips int
	InnerTrips int
	Live       Alloc
	Spare      Alloc
	Copies     int    // copies on the forwarding path
	Swap       bool   // live slot is 2 instead of 1
	ReadSpare  bool   // the outer body also reads the spare slot
	Thread     string // execution thread of the inner computations
	Width      int64
}

// Nest is a built loop nest.
type Nest struct {
	Module    *hlo.Module
	Entry     hlo.ComputationID
	OuterCond hlo.ComputationID
	OuterBody hlo.ComputationID
	InnerCond hlo.ComputationID
	InnerBody hlo.ComputationID
	Live      int
	Spare     int
}

// Counted builds a condition over a tuple state whose slot 0 is an s32
// counter, true while the counter is below n.
func Counted(name string, state hlo.Shape, n int, thread string) *hlo.Computation {
	b := hlo.NewBuilder(name).OnThread(thread)
	p := b.Parameter(0, state)
	return b.MustBuild(b.Compare(b.GetTupleElement(p, 0), b.ConstantScalar(hlo.S32, float64(n)), hlo.DirLT))
}

// Build creates the module described by cfg. The entry takes a single
// f32[Width] argument and returns the accumulated outer state.
func Build(cfg Config) *Nest {
	if cfg.Width == 0 {
		cfg.Width = 4
	}

	idx := hlo.Scalar(hlo.S32)
	vec := hlo.Array(hlo.F32, cfg.Width)
	m := hlo.NewModule(fmt.Sprintf("nest_%d_%d", cfg.OuterTrips, cfg.InnerTrips))
	ret := &Nest{Module: m, Live: 1, Spare: 2}

	/* the live slot may be the second one */
	if cfg.Swap {
		ret.Live, ret.Spare = 2, 1
	}

	/* inner loop */
	inner := hlo.TupleOf(idx, vec, vec)
	ret.InnerCond = m.AddComputation(Counted("inner_cond", inner, cfg.InnerTrips, cfg.Thread))
	ret.InnerBody = m.AddComputation(innerBody(cfg, inner, ret.Live, ret.Spare))

	/* outer loop */
	outer := hlo.TupleOf(idx, vec)
	ret.OuterCond = m.AddComputation(Counted("outer_cond", outer, cfg.OuterTrips, ""))
	ret.OuterBody = m.AddComputation(outerBody(cfg, ret, outer))

	/* entry */
	b := hlo.NewBuilder("entry")
	x := b.Parameter(0, vec)
	w := b.While(ret.OuterCond, ret.OuterBody, b.Tuple(b.ConstantScalar(hlo.S32, 0), x))
	ret.Entry = m.AddEntryComputation(b.MustBuild(b.GetTupleElement(w, 1)))
	return ret
}

func innerBody(cfg Config, state hlo.Shape, live int, spare int) *hlo.Computation {
	vec := state.Elements[live]
	b := hlo.NewBuilder("inner_body").OnThread(cfg.Thread)
	p := b.Parameter(0, state)
	i := b.GetTupleElement(p, 0)
	a := b.GetTupleElement(p, live)

	/* next = a * 0.5 + 1 */
	half := b.Broadcast(b.ConstantScalar(hlo.F32, 0.5), vec)
	one := b.Broadcast(b.ConstantScalar(hlo.F32, 1), vec)
	next := b.Add(b.Multiply(a, half), one)

	/* the previous value moves to the spare slot */
	prev := a
	for n := 0; n < cfg.Copies; n++ {
		prev = b.Copy(prev)
	}

	/* assemble the new state */
	elems := make([]hlo.InstrID, 3)
	elems[0] = b.Add(i, b.ConstantScalar(hlo.S32, 1))
	elems[live], elems[spare] = next, prev
	return b.MustBuild(b.Tuple(elems...))
}

func outerBody(cfg Config, n *Nest, state hlo.Shape) *hlo.Computation {
	vec := state.Elements[1]
	b := hlo.NewBuilder("outer_body")
	p := b.Parameter(0, state)
	j := b.GetTupleElement(p, 0)
	acc := b.GetTupleElement(p, 1)

	/* establish the storage of both slots */
	alloc := func(kind Alloc, fill float64) hlo.InstrID {
		switch kind {
		case Broadcast:
			return b.Broadcast(b.ConstantScalar(hlo.F32, fill), vec)
		case CopyState:
			return b.Copy(acc)
		case State:
			return acc
		case Constant:
			return b.Constant(hlo.Splat(vec, fill))
		case Bitcast:
			return b.Bitcast(b.Broadcast(b.ConstantScalar(hlo.F32, fill), hlo.Array(hlo.F32, 1, cfg.Width)), vec)
		case TupleElement:
			return b.GetTupleElement(b.Tuple(b.Broadcast(b.ConstantScalar(hlo.F32, fill), vec)), 0)
		case BitcastState:
			return b.Bitcast(acc, vec)
		default:
			panic("unreachable")
		}
	}

	/* run the inner loop */
	elems := make([]hlo.InstrID, 3)
	elems[0] = b.ConstantScalar(hlo.S32, 0)
	elems[n.Live] = alloc(cfg.Live, 3)
	elems[n.Spare] = alloc(cfg.Spare, -7)
	w := b.While(n.InnerCond, n.InnerBody, b.Tuple(elems...))

	/* consume the winning buffer */
	res := b.GetTupleElement(w, n.Live)
	if cfg.ReadSpare {
		res = b.Add(res, b.GetTupleElement(w, n.Spare))
	}
	next := b.Add(j, b.ConstantScalar(hlo.S32, 1))
	return b.MustBuild(b.Tuple(next, b.Add(acc, res)))
}

// Vector returns an f32 literal of the given values.
func Vector(v ...float64) *hlo.Literal {
	ret, err := hlo.NewLiteral(hlo.Array(hlo.F32, int64(len(v))), v...)
	if err != nil {
		panic(err)
	}
	return ret
}
