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

// Package whilebuf removes double buffering from nested while loops.
//
// An inner loop that ping-pongs a value between two loop state slots needs
// two buffers, because the slot just read is still live while the other one
// is written. When both buffers are freshly allocated by the body of the
// enclosing loop, nothing outside the inner loop can observe them, so the
// pair is collapsed into a single slot updated in place.
package whilebuf

import (
	"context"

	"github.com/cloudwego/whilebuf/hlo"
	"github.com/cloudwego/whilebuf/internal/dbuf"
	"github.com/cloudwego/whilebuf/internal/opts"
)

// PassName is the stable identifier of the pass.
const PassName = dbuf.Name

// ModulePass is the contract every pass of a pipeline honors: Run reports
// whether it changed the module, so the pipeline knows when a fixpoint is
// reached.
type ModulePass interface {
	Name() string
	Run(ctx context.Context, m *hlo.Module, threads hlo.ThreadSet) (bool, error)
}

// Pass is the while double-buffer removal pass. It keeps no state between
// runs, so one Pass can process independent modules concurrently.
type Pass struct {
	id   int64
	opts opts.Options
}

var _ ModulePass = (*Pass)(nil)

// New creates the pass. The module ID is only used to label diagnostics.
func New(moduleID int64, options ...Option) *Pass {
	ret := &Pass{id: moduleID, opts: opts.GetDefaultOptions()}
	for _, fn := range options {
		fn(&ret.opts)
	}
	return ret
}

func (self *Pass) Name() string {
	return PassName
}

func (self *Pass) ModuleID() int64 {
	return self.id
}

// Run rewrites m in place. Only computations of the given execution threads
// are modified, an empty set allows all of them. On error the module is left
// unchanged.
func (self *Pass) Run(ctx context.Context, m *hlo.Module, threads hlo.ThreadSet) (bool, error) {
	o := self.opts
	return dbuf.Run(ctx, m, threads, self.id, &o)
}
