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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/whilebuf/hlo"
	"github.com/cloudwego/whilebuf/internal/hlotest"
)

type nestPair struct {
	outer string
	inner string
}

func collectNests(m *hlo.Module, c *hlo.Computation) (ret []nestPair) {
	NestsOf(m, c).ForEach(func(outer *hlo.Instruction, inner *hlo.Instruction) {
		ret = append(ret, nestPair{outer.Name, inner.Name})
	})
	return
}

func TestNests_Simple(t *testing.T) {
	n := hlotest.Build(hlotest.Config{OuterTrips: 2, InnerTrips: 3})
	require.Equal(t, []nestPair{{"while", "while"}}, collectNests(n.Module, n.Module.Computation(n.Entry)))
	require.Empty(t, collectNests(n.Module, n.Module.Computation(n.OuterBody)))
	require.Empty(t, collectNests(n.Module, n.Module.Computation(n.InnerBody)))
}

func TestNests_Reset(t *testing.T) {
	n := hlotest.Build(hlotest.Config{OuterTrips: 2, InnerTrips: 3})
	it := NestsOf(n.Module, n.Module.Computation(n.Entry))
	require.True(t, it.Next())
	first := it.Inner()
	require.False(t, it.Next())
	require.Nil(t, it.Inner())
	it.Reset()
	require.True(t, it.Next())
	require.Same(t, first, it.Inner())
}

func TestNests_Order(t *testing.T) {
	m := hlo.NewModule("order")
	idx := hlo.Scalar(hlo.S32)
	state := hlo.TupleOf(idx)

	/* a trivial loop */
	cond := m.AddComputation(hlotest.Counted("cond", state, 1, ""))
	b := hlo.NewBuilder("step")
	p := b.Parameter(0, state)
	body := m.AddComputation(b.MustBuild(b.Tuple(b.Add(b.GetTupleElement(p, 0), b.ConstantScalar(hlo.S32, 1)))))

	/* three loops in the outer body: w2 consumes w1, w3 is independent */
	b = hlo.NewBuilder("outer_body")
	p = b.Parameter(0, state)
	w1 := b.While(cond, body, p)
	w2 := b.While(cond, body, w1)
	w3 := b.While(cond, body, p)
	ob := m.AddComputation(b.MustBuild(b.Tuple(b.Add(b.GetTupleElement(w3, 0), b.GetTupleElement(w2, 0)))))

	/* two outer loops in sequence */
	b = hlo.NewBuilder("entry")
	x := b.Parameter(0, state)
	o1 := b.While(cond, ob, x)
	o2 := b.While(cond, ob, o1)
	m.AddEntryComputation(b.MustBuild(o2))
	require.NoError(t, m.Verify())

	/* w1 is only reachable through w2 */
	got := collectNests(m, m.EntryComputation())
	require.Equal(t, []nestPair{
		{"while.1", "while.2"},
		{"while.1", "while.1"},
		{"while", "while.2"},
		{"while", "while.1"},
	}, got)
}
