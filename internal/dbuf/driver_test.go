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
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/whilebuf/hlo"
	"github.com/cloudwego/whilebuf/internal/hlotest"
)

func run(t *testing.T, m *hlo.Module, threads hlo.ThreadSet) bool {
	changed, err := Run(context.Background(), m, threads, 1, defaultOptions())
	require.NoError(t, err)
	return changed
}

func innerState(m *hlo.Module, n *hlotest.Nest) hlo.Shape {
	return m.Computation(n.InnerBody).Param(0).Shape
}

func TestRun_Scenario(t *testing.T) {
	for _, trips := range []int{0, 1, 5} {
		cfg := hlotest.Config{OuterTrips: 3, InnerTrips: trips, Copies: 1}
		ref := hlotest.Build(cfg)
		n := hlotest.Build(cfg)

		require.True(t, run(t, n.Module, nil))
		require.NoError(t, n.Module.Verify())
		require.Len(t, innerState(n.Module, n).Elements, 2)

		/* same result as the double-buffered loop */
		x := hlotest.Vector(1, -2, 0.25, 8)
		want, err := hlo.Evaluate(ref.Module, x)
		require.NoError(t, err)
		got, err := hlo.Evaluate(n.Module, x)
		require.NoError(t, err)
		require.True(t, want.Equal(got), "trips=%d want=%s got=%s", trips, want, got)
	}
}

func TestRun_ZeroTrips(t *testing.T) {
	n := hlotest.Build(hlotest.Config{OuterTrips: 2, InnerTrips: 0})
	require.True(t, run(t, n.Module, nil))

	/* the initial live value flows through untouched */
	got, err := hlo.Evaluate(n.Module, hlotest.Vector(0, 1, 2, 3))
	require.NoError(t, err)
	require.Equal(t, []float64{6, 7, 8, 9}, got.Data)
}

func TestRun_Random(t *testing.T) {
	f := gofakeit.New(20240601)
	for i := 0; i < 16; i++ {
		cfg := hlotest.Config{
			OuterTrips: f.Number(0, 4),
			InnerTrips: f.Number(0, 6),
			Copies:     f.Number(0, 3),
			Swap:       f.Bool(),
			Live:       hlotest.Alloc(f.Number(0, 1)),
			Spare:      hlotest.Alloc(f.Number(0, 1)),
			Width:      int64(f.Number(1, 8)),
		}
		ref := hlotest.Build(cfg)
		n := hlotest.Build(cfg)
		require.True(t, run(t, n.Module, nil), spew.Sdump(cfg))

		/* random input of the right width */
		v := make([]float64, cfg.Width)
		for j := range v {
			v[j] = f.Float64Range(-100, 100)
		}
		x := hlotest.Vector(v...)

		want, err := hlo.Evaluate(ref.Module, x)
		require.NoError(t, err)
		got, err := hlo.Evaluate(n.Module, x)
		require.NoError(t, err)
		require.True(t, want.Equal(got), spew.Sdump(cfg))
	}
}

func TestRun_Aliases(t *testing.T) {
	cfg := hlotest.Config{OuterTrips: 3, InnerTrips: 4, Live: hlotest.TupleElement, Spare: hlotest.Bitcast}
	ref := hlotest.Build(cfg)
	n := hlotest.Build(cfg)
	require.True(t, run(t, n.Module, nil))

	/* the spare chain behind the bitcast is gone, the live one stays */
	ob := n.Module.Computation(n.OuterBody)
	assert.Equal(t, 0, countOps(ob, hlo.OpBitcast))
	assert.Equal(t, 1, countOps(ob, hlo.OpBroadcast))

	x := hlotest.Vector(2, 4, 6, 8)
	want, err := hlo.Evaluate(ref.Module, x)
	require.NoError(t, err)
	got, err := hlo.Evaluate(n.Module, x)
	require.NoError(t, err)
	require.True(t, want.Equal(got), "want=%s got=%s", want, got)
}

func TestRun_Idempotent(t *testing.T) {
	n := hlotest.Build(hlotest.Config{OuterTrips: 2, InnerTrips: 3, Copies: 2})
	require.True(t, run(t, n.Module, nil))
	first := n.Module.String()
	require.False(t, run(t, n.Module, nil))
	require.Equal(t, first, n.Module.String())
}

func TestRun_Untouched(t *testing.T) {
	tests := []struct {
		name string
		cfg  hlotest.Config
	}{
		{"outer state", hlotest.Config{Live: hlotest.State}},
		{"constant", hlotest.Config{Spare: hlotest.Constant}},
		{"spare observed", hlotest.Config{ReadSpare: true}},
		{"bitcast of outer state", hlotest.Config{Spare: hlotest.BitcastState}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.OuterTrips, tt.cfg.InnerTrips = 2, 3
			n := hlotest.Build(tt.cfg)
			before := n.Module.String()
			require.False(t, run(t, n.Module, nil))
			require.Equal(t, before, n.Module.String())
		})
	}
}

func TestRun_Threads(t *testing.T) {
	n := hlotest.Build(hlotest.Config{OuterTrips: 2, InnerTrips: 3, Thread: "async"})
	before := n.Module.String()

	/* the inner loop is on an excluded thread */
	require.False(t, run(t, n.Module, hlo.Threads(hlo.DefaultThread)))
	require.Equal(t, before, n.Module.String())

	/* all threads */
	require.True(t, run(t, n.Module, hlo.Threads(hlo.DefaultThread, "async")))
	require.Len(t, innerState(n.Module, n).Elements, 2)
}

// pairsModule builds a nest whose inner loop carries two independent
// ping-pongs, (1, 3) and (2, 4).
func pairsModule(t *testing.T) (*hlo.Module, hlo.ComputationID) {
	m := hlo.NewModule("pairs")
	idx := hlo.Scalar(hlo.S32)
	vec := hlo.Array(hlo.F32, 3)
	state := hlo.TupleOf(idx, vec, vec, vec, vec)
	cond := m.AddComputation(hlotest.Counted("cond", state, 4, ""))

	b := hlo.NewBuilder("body")
	p := b.Parameter(0, state)
	x, y := b.GetTupleElement(p, 1), b.GetTupleElement(p, 2)
	i := b.Add(b.GetTupleElement(p, 0), b.ConstantScalar(hlo.S32, 1))
	body := m.AddComputation(b.MustBuild(b.Tuple(i, b.Add(x, y), b.Multiply(x, y), x, b.Copy(y))))

	/* the outer body allocates everything */
	b = hlo.NewBuilder("outer_body")
	p = b.Parameter(0, hlo.TupleOf(idx, vec))
	acc := b.GetTupleElement(p, 1)
	w := b.While(cond, body, b.Tuple(
		b.ConstantScalar(hlo.S32, 0),
		b.Copy(acc),
		b.Broadcast(b.ConstantScalar(hlo.F32, 0.5), vec),
		b.Broadcast(b.ConstantScalar(hlo.F32, 0), vec),
		b.Broadcast(b.ConstantScalar(hlo.F32, 0), vec),
	))
	next := b.Add(b.GetTupleElement(p, 0), b.ConstantScalar(hlo.S32, 1))
	ob := m.AddComputation(b.MustBuild(b.Tuple(next, b.Add(b.GetTupleElement(w, 1), b.GetTupleElement(w, 2)))))

	oc := m.AddComputation(hlotest.Counted("outer_cond", hlo.TupleOf(idx, vec), 3, ""))
	b = hlo.NewBuilder("entry")
	v := b.Parameter(0, vec)
	ow := b.While(oc, ob, b.Tuple(b.ConstantScalar(hlo.S32, 0), v))
	m.AddEntryComputation(b.MustBuild(b.GetTupleElement(ow, 1)))
	require.NoError(t, m.Verify())
	return m, body
}

func TestRun_MultiplePairs(t *testing.T) {
	m, body := pairsModule(t)
	x0 := hlotest.Vector(0.5, 1, -1)
	want, err := hlo.Evaluate(m, x0)
	require.NoError(t, err)

	/* both pairs collapse in one run */
	require.True(t, run(t, m, nil))
	require.Len(t, m.Computation(body).Param(0).Shape.Elements, 3)
	got, err := hlo.Evaluate(m, x0)
	require.NoError(t, err)
	require.True(t, want.Equal(got), "want=%s got=%s", want, got)
}

func TestRun_StructuralError(t *testing.T) {
	n := hlotest.Build(hlotest.Config{OuterTrips: 2, InnerTrips: 3})

	/* the condition no longer agrees with the loop state */
	cond := n.Module.Computation(n.InnerCond)
	cond.Param(0).Shape = hlo.TupleOf(hlo.Scalar(hlo.S32))
	before := n.Module.String()

	changed, err := Run(context.Background(), n.Module, nil, 9, defaultOptions())
	require.Error(t, err)
	assert.False(t, changed)

	var ve hlo.VerifyError
	require.True(t, errors.As(err, &ve), spew.Sdump(err))
	assert.Equal(t, before, n.Module.String())
}

func TestRun_Rollback(t *testing.T) {
	m, body := pairsModule(t)
	before := m.String()

	/* break the second rewrite, after the first one is committed */
	staged := 0
	testHookStaged = func(txn *Txn) {
		if staged++; staged == 2 {
			txn.Resolve(body).RootInstr().Shape = hlo.Scalar(hlo.F32)
		}
	}
	defer func() { testHookStaged = nil }()

	changed, err := Run(context.Background(), m, nil, 3, defaultOptions())
	require.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, staged)

	var ie InvariantError
	require.True(t, errors.As(err, &ie), spew.Sdump(err))
	assert.Equal(t, int64(3), ie.ModuleID)
	var ve hlo.VerifyError
	require.True(t, errors.As(err, &ve), spew.Sdump(err))

	/* the first commit is undone as well */
	assert.Equal(t, before, m.String())
	require.Len(t, m.Computation(body).Param(0).Shape.Elements, 5)
}
