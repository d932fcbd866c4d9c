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
	"fmt"

	"github.com/cloudwego/whilebuf/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithMaxCopyChain sets how many copies may sit between the two slots of a
// double buffer for the pair to still be recognized.
//
// This value can also be configured with the `WHILEBUF_MAX_COPY_CHAIN`
// environment variable.
//
// The default value of this option is "4".
func WithMaxCopyChain(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("whilebuf: invalid copy chain length: %d", n))
	} else {
		return func(o *opts.Options) { o.MaxCopyChain = n }
	}
}

// WithVerify controls whether every rewrite is verified before it is
// committed. A rewrite failing verification aborts the whole run.
//
// This value can also be configured with the `WHILEBUF_VERIFY` environment
// variable.
//
// The default value of this option is "true".
func WithVerify(v bool) Option {
	return func(o *opts.Options) { o.Verify = v }
}
