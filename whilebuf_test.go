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

package whilebuf

import (
	"context"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/whilebuf/hlo"
	"github.com/cloudwego/whilebuf/internal/hlotest"
)

func TestPass_Identity(t *testing.T) {
	p := New(42)
	assert.Equal(t, "while-double-buffer-removal", p.Name())
	assert.Equal(t, int64(42), p.ModuleID())
	assert.Equal(t, PassName, p.Name())
}

func TestPass_Options(t *testing.T) {
	p := New(1, WithMaxCopyChain(0), WithVerify(false))
	assert.Equal(t, 0, p.opts.MaxCopyChain)
	assert.False(t, p.opts.Verify)
	assert.Panics(t, func() { WithMaxCopyChain(-1) })
}

func TestPass_Run(t *testing.T) {
	cfg := hlotest.Config{OuterTrips: 4, InnerTrips: 3, Copies: 2}
	ref := hlotest.Build(cfg)
	n := hlotest.Build(cfg)

	changed, err := New(7).Run(context.Background(), n.Module, hlo.Threads(hlo.DefaultThread))
	require.NoError(t, err)
	require.True(t, changed, spew.Sdump(n.Module.Computation(n.InnerBody)))

	x := hlotest.Vector(3, 1, 4, 1)
	want, err := hlo.Evaluate(ref.Module, x)
	require.NoError(t, err)
	got, err := hlo.Evaluate(n.Module, x)
	require.NoError(t, err)
	assert.True(t, want.Equal(got), "want=%s got=%s", want, got)

	/* nothing left to do */
	text := n.Module.String()
	changed, err = New(7).Run(context.Background(), n.Module, nil)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, text, n.Module.String())
}

func TestPass_CopyChainLimit(t *testing.T) {
	n := hlotest.Build(hlotest.Config{OuterTrips: 1, InnerTrips: 1, Copies: 2})
	text := n.Module.String()
	changed, err := New(7, WithMaxCopyChain(1)).Run(context.Background(), n.Module, nil)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, text, n.Module.String())
}

func TestPass_StructuralError(t *testing.T) {
	n := hlotest.Build(hlotest.Config{OuterTrips: 1, InnerTrips: 1})
	n.Module.Entry = hlo.NoComputation
	_, err := New(7).Run(context.Background(), n.Module, nil)

	var se StructuralError
	require.True(t, errors.As(err, &se), "%v", err)
	assert.Contains(t, se.Reason, "no entry computation")
}
