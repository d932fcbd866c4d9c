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
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ThreadSet is a set of execution thread names. The empty set allows every
// thread.
type ThreadSet map[string]struct{}

func Threads(names ...string) ThreadSet {
	ret := make(ThreadSet, len(names))
	for _, v := range names {
		ret[v] = struct{}{}
	}
	return ret
}

// Allows reports whether computations of the given execution thread may be touched.
func (self ThreadSet) Allows(thread string) bool {
	if len(self) == 0 {
		return true
	}
	_, ok := self[thread]
	return ok
}

// AllowsAll reports whether every computation in cs may be touched.
func (self ThreadSet) AllowsAll(cs ...*Computation) bool {
	for _, c := range cs {
		if !self.Allows(c.ExecutionThread()) {
			return false
		}
	}
	return true
}

func (self ThreadSet) String() string {
	if len(self) == 0 {
		return "{*}"
	}
	keys := maps.Keys(self)
	slices.Sort(keys)
	return "{" + strings.Join(keys, ",") + "}"
}
