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
	"strings"
)

// ElementType is the primitive type of the elements of an array shape.
type ElementType uint8

const (
	Invalid ElementType = iota
	F32
	S32
	Pred
	Tuple
)

var _elementTypes = [...]string{
	Invalid: "invalid",
	F32:     "f32",
	S32:     "s32",
	Pred:    "pred",
	Tuple:   "tuple",
}

func (self ElementType) String() string {
	if int(self) >= len(_elementTypes) {
		return fmt.Sprintf("type(%d)", uint8(self))
	} else {
		return _elementTypes[self]
	}
}

// round converts v to the nearest value representable by the element type.
func (self ElementType) round(v float64) float64 {
	switch self {
	case F32:
		return float64(float32(v))
	case S32:
		return float64(int32(v))
	case Pred:
		if v != 0 {
			return 1
		} else {
			return 0
		}
	default:
		return v
	}
}

// Shape is either an array shape (element type plus dimensions) or a tuple of shapes.
type Shape struct {
	Type     ElementType
	Dims     []int64
	Elements []Shape
}

// Array returns an array shape.
func Array(t ElementType, dims ...int64) Shape {
	return Shape{Type: t, Dims: append([]int64(nil), dims...)}
}

// Scalar returns a rank-0 array shape.
func Scalar(t ElementType) Shape {
	return Shape{Type: t}
}

// TupleOf returns a tuple shape of the given elements.
func TupleOf(elems ...Shape) Shape {
	ret := Shape{Type: Tuple, Elements: make([]Shape, len(elems))}
	for i, e := range elems {
		ret.Elements[i] = e.Clone()
	}
	return ret
}

func (self Shape) IsTuple() bool {
	return self.Type == Tuple
}

func (self Shape) IsArray() bool {
	return self.Type != Tuple && self.Type != Invalid
}

// IsScalar reports whether the shape is a rank-0 array of element type t.
func (self Shape) IsScalar(t ElementType) bool {
	return self.Type == t && len(self.Dims) == 0
}

// Size returns the number of elements in an array shape.
func (self Shape) Size() int {
	n := 1
	for _, d := range self.Dims {
		n *= int(d)
	}
	return n
}

func (self Shape) Equal(other Shape) bool {
	if self.Type != other.Type {
		return false
	}

	/* tuples are compared element by element */
	if self.Type == Tuple {
		if len(self.Elements) != len(other.Elements) {
			return false
		}
		for i := range self.Elements {
			if !self.Elements[i].Equal(other.Elements[i]) {
				return false
			}
		}
		return true
	}

	/* arrays must have the same dimensions */
	if len(self.Dims) != len(other.Dims) {
		return false
	}
	for i := range self.Dims {
		if self.Dims[i] != other.Dims[i] {
			return false
		}
	}
	return true
}

func (self Shape) Clone() Shape {
	ret := Shape{Type: self.Type}
	if self.Dims != nil {
		ret.Dims = append([]int64(nil), self.Dims...)
	}
	if self.Elements != nil {
		ret.Elements = make([]Shape, len(self.Elements))
		for i, e := range self.Elements {
			ret.Elements[i] = e.Clone()
		}
	}
	return ret
}

// WithoutElement returns a copy of a tuple shape with the i-th element removed.
func (self Shape) WithoutElement(i int) Shape {
	elems := make([]Shape, 0, len(self.Elements))
	for j, e := range self.Elements {
		if j != i {
			elems = append(elems, e)
		}
	}
	return TupleOf(elems...)
}

func (self Shape) String() string {
	if self.Type == Tuple {
		ret := make([]string, len(self.Elements))
		for i, e := range self.Elements {
			ret[i] = e.String()
		}
		return "(" + strings.Join(ret, ", ") + ")"
	}

	/* array shapes */
	ret := make([]string, len(self.Dims))
	for i, d := range self.Dims {
		ret[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("%s[%s]", self.Type, strings.Join(ret, ","))
}
