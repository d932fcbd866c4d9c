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

type Options struct {
	MaxCopyChain int
	Verify       bool
}

// FollowCopies reports whether a chain of n copies is short enough to be
// treated as a pass-through.
func (self *Options) FollowCopies(n int) bool {
	return n <= self.MaxCopyChain
}

func GetDefaultOptions() Options {
	return Options{
		MaxCopyChain: MaxCopyChain,
		Verify:       Verify,
	}
}
