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

	"github.com/nikandfor/tlog"
	"github.com/pkg/errors"

	"github.com/cloudwego/whilebuf/hlo"
	"github.com/cloudwego/whilebuf/internal/opts"
)

// Name identifies the pass in logs and pipeline configurations.
const Name = "while-double-buffer-removal"

// Run removes every collapsible double buffer from the computations of m
// reachable from its entry. Either the whole run succeeds, or m is left as it
// was and an error is returned.
func Run(ctx context.Context, m *hlo.Module, threads hlo.ThreadSet, moduleID int64, o *opts.Options) (changed bool, err error) {
	var log []*Txn
	var order []hlo.ComputationID

	_, tr := tlog.SpawnFromContextAndWrap(ctx, Name, "module", m.Name, "module_id", moduleID, "threads", threads.String())
	defer func() {
		tr.Finish("changed", changed, "err", err)
	}()

	/* structural problems are reported before touching anything */
	if err = m.Verify(); err != nil {
		return false, errors.Wrapf(err, "%s: module %d", Name, moduleID)
	}
	if order, err = m.CallOrder(); err != nil {
		return false, errors.Wrapf(err, "%s: module %d", Name, moduleID)
	}

	/* undo everything on failure */
	defer func() {
		if err != nil {
			for i := len(log) - 1; i >= 0; i-- {
				log[i].Rollback()
			}
			changed = false
		}
	}()

	/* collapse the loop nests one at a time, computation by computation */
	for _, id := range order {
		for {
			txn, found, rerr := collapseOne(m, id, threads, moduleID, o, tr)
			if rerr != nil {
				err = errors.Wrapf(rerr, "%s: module %d", Name, moduleID)
				return
			}
			if !found {
				break
			}
			txn.Commit()
			log = append(log, txn)
			changed = true
		}
	}
	return
}

// collapseOne stages the rewrite of the first collapsible loop nest of
// computation id.
func collapseOne(m *hlo.Module, id hlo.ComputationID, threads hlo.ThreadSet, moduleID int64, o *opts.Options, tr tlog.Span) (*Txn, bool, error) {
	mt := NewMatcher(m, o)
	sc := NewScope(m, threads)
	it := NestsOf(m, m.Computation(id))

	/* find the first match */
	for it.Next() {
		outer, inner := it.Outer(), it.Inner()
		g, ok := mt.Match(m.Computation(outer.Body), inner)
		if !ok || !sc.Collapsible(outer, inner, g) {
			continue
		}

		/* stage the rewrite */
		txn, err := NewRewriter(m, o, moduleID).Rewrite(outer, inner, g)
		if err != nil {
			return nil, false, err
		}

		tr.Printw("collapse double buffer",
			"module_id", moduleID,
			"outer_body", m.Computation(outer.Body).Name,
			"inner", inner.Name,
			"group", g.String(),
		)
		return txn, true, nil
	}
	return nil, false, nil
}
