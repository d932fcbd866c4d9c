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
	"html"
	"strings"

	"github.com/oleiade/lane"
)

// Dot renders the instructions reachable from the root of c as a Graphviz
// digraph, edges point from operands to users.
func Dot(m *Module, c *Computation) string {
	q := lane.NewQueue()
	n := make(map[InstrID]bool)
	buf := []string{
		fmt.Sprintf("digraph %q {", c.Name),
		`    graph [ fontname = "Fira Code" ]`,
		`    node [ fontname = "Fira Code" fontsize = "12" shape = "box" ]`,
		`    edge [ fontname = "Fira Code" ]`,
	}

	/* breadth-first from the root */
	for q.Enqueue(c.Root); !q.Empty(); {
		v := c.Instr(q.Dequeue().(InstrID))
		if n[v.ID] {
			continue
		}
		n[v.ID] = true
		label := html.EscapeString(c.format(m, v))
		buf = append(buf, fmt.Sprintf(`    i_%d [ label = "%s" ]`, v.ID, label))
		for i, op := range v.Operands {
			buf = append(buf, fmt.Sprintf(`    i_%d -> i_%d [ label = "%d" ]`, op, v.ID, i))
			if !n[op] {
				q.Enqueue(op)
			}
		}
	}

	buf = append(buf, "}")
	return strings.Join(buf, "\n")
}
