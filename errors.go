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
	"github.com/cloudwego/whilebuf/hlo"
	"github.com/cloudwego/whilebuf/internal/dbuf"
)

// StructuralError occures when the module handed to the pass is malformed,
// for example a while loop whose condition and body disagree on the loop
// state. The module is not modified.
type StructuralError = hlo.VerifyError

// InvariantError occures when a rewrite fails its own verification. Every
// rewrite of the run is rolled back.
type InvariantError = dbuf.InvariantError
