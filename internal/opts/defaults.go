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

package opts

import (
	"github.com/xyproto/env/v2"
)

const (
	_DefaultMaxCopyChain = 4 // copies allowed between the swapped slots
)

var (
	MaxCopyChain = parseOrDefault("WHILEBUF_MAX_COPY_CHAIN", _DefaultMaxCopyChain, 0)
	Verify       = env.Bool("WHILEBUF_VERIFY") || !env.Has("WHILEBUF_VERIFY")
)

func parseOrDefault(key string, def int, min int) int {
	if !env.Has(key) {
		return def
	} else if ret := env.Int(key, -1); ret == -1 {
		panic("whilebuf: invalid value for " + key)
	} else if ret < min {
		panic("whilebuf: value too small for " + key)
	} else {
		return ret
	}
}
