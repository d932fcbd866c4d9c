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
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	counter = Scalar(S32)
	vector  = Array(F32, 2)
	state   = TupleOf(counter, vector)
)

/* (i, x) -> (i + 1, x * x) while i < n */
func squaring(n float64) *Module {
	m := NewModule("squaring")

	b := NewBuilder("cond")
	p := b.Parameter(0, state)
	cond := m.AddComputation(b.MustBuild(b.Compare(b.GetTupleElement(p, 0), b.ConstantScalar(S32, n), DirLT)))

	b = NewBuilder("body")
	p = b.Parameter(0, state)
	i := b.Add(b.GetTupleElement(p, 0), b.ConstantScalar(S32, 1))
	x := b.GetTupleElement(p, 1)
	body := m.AddComputation(b.MustBuild(b.Tuple(i, b.Multiply(x, x))))

	b = NewBuilder("entry")
	x = b.Parameter(0, vector)
	w := b.While(cond, body, b.Tuple(b.ConstantScalar(S32, 0), x))
	m.AddEntryComputation(b.MustBuild(b.GetTupleElement(w, 1)))
	return m
}

func TestEvaluate_Loop(t *testing.T) {
	m := squaring(3)
	require.NoError(t, m.Verify())
	x, err := NewLiteral(vector, 2, -1)
	require.NoError(t, err)
	ret, err := Evaluate(m, x)
	require.NoError(t, err)
	assert.Equal(t, []float64{256, 1}, ret.Data, spew.Sdump(ret))
}

func TestEvaluate_ZeroTrips(t *testing.T) {
	x, _ := NewLiteral(vector, 3, 4)
	ret, err := Evaluate(squaring(0), x)
	require.NoError(t, err)
	assert.True(t, ret.Equal(x))
}

func TestEvaluate_TripLimit(t *testing.T) {
	old := MaxTripCount
	MaxTripCount = 8
	defer func() { MaxTripCount = old }()
	x, _ := NewLiteral(vector, 1, 1)
	_, err := Evaluate(squaring(100), x)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded 8 iterations")
}

func TestEvaluate_Arguments(t *testing.T) {
	_, err := Evaluate(squaring(1))
	require.Error(t, err)
	_, err = Evaluate(squaring(1), ScalarLiteral(F32, 1))
	require.Error(t, err)
}

func TestEvaluate_Elementwise(t *testing.T) {
	b := NewBuilder("entry")
	x := b.Parameter(0, vector)
	y := b.Parameter(1, vector)
	gt := b.Compare(x, y, DirGT)
	mx := b.Select(gt, x, y)
	d := b.Subtract(b.Maximum(x, y), x)
	r := b.Tuple(mx, b.Bitcast(d, Array(F32, 1, 2)), b.Negate(x), gt)
	m := NewModule("elementwise")
	m.AddEntryComputation(b.MustBuild(r))
	require.NoError(t, m.Verify())

	xv, _ := NewLiteral(vector, 1, 5)
	yv, _ := NewLiteral(vector, 3, 2)
	ret, err := Evaluate(m, xv, yv)
	require.NoError(t, err)
	assert.Equal(t, "({3, 5}, {2, 0}, {-1, -5}, {0, 1})", ret.String())
}
