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

	"github.com/pkg/errors"
)

// Literal is a concrete value of some shape. Array elements are stored in
// row-major order, rounded to the element type.
type Literal struct {
	Shape    Shape
	Data     []float64
	Elements []*Literal
}

// NewLiteral creates an array literal, the data is rounded to the element type.
func NewLiteral(shape Shape, data ...float64) (*Literal, error) {
	if !shape.IsArray() {
		return nil, errors.Errorf("hlo: cannot create an array literal of shape %s", shape)
	}
	if len(data) != shape.Size() {
		return nil, errors.Errorf("hlo: literal of shape %s needs %d elements, got %d", shape, shape.Size(), len(data))
	}
	ret := &Literal{Shape: shape.Clone(), Data: make([]float64, len(data))}
	for i, v := range data {
		ret.Data[i] = shape.Type.round(v)
	}
	return ret, nil
}

// ScalarLiteral creates a rank-0 literal.
func ScalarLiteral(t ElementType, v float64) *Literal {
	return &Literal{Shape: Scalar(t), Data: []float64{t.round(v)}}
}

// TupleLiteral creates a tuple literal of the given elements.
func TupleLiteral(elems ...*Literal) *Literal {
	shapes := make([]Shape, len(elems))
	for i, e := range elems {
		shapes[i] = e.Shape
	}
	return &Literal{Shape: TupleOf(shapes...), Elements: elems}
}

// Splat creates an array literal with every element set to v.
func Splat(shape Shape, v float64) *Literal {
	ret := &Literal{Shape: shape.Clone(), Data: make([]float64, shape.Size())}
	for i := range ret.Data {
		ret.Data[i] = shape.Type.round(v)
	}
	return ret
}

func (self *Literal) Clone() *Literal {
	ret := &Literal{Shape: self.Shape.Clone()}
	if self.Data != nil {
		ret.Data = append([]float64(nil), self.Data...)
	}
	for _, e := range self.Elements {
		ret.Elements = append(ret.Elements, e.Clone())
	}
	return ret
}

// Equal reports whether both literals have the same shape and identical elements.
func (self *Literal) Equal(other *Literal) bool {
	if !self.Shape.Equal(other.Shape) {
		return false
	}
	if self.Shape.IsTuple() {
		for i := range self.Elements {
			if !self.Elements[i].Equal(other.Elements[i]) {
				return false
			}
		}
		return true
	}
	for i := range self.Data {
		if self.Data[i] != other.Data[i] {
			return false
		}
	}
	return true
}

func (self *Literal) String() string {
	if self.Shape.IsTuple() {
		ret := make([]string, len(self.Elements))
		for i, e := range self.Elements {
			ret[i] = e.String()
		}
		return "(" + strings.Join(ret, ", ") + ")"
	}

	/* scalars are printed without braces */
	if len(self.Shape.Dims) == 0 {
		return fmt.Sprint(self.Data[0])
	}

	/* arrays are printed flat */
	ret := make([]string, len(self.Data))
	for i, v := range self.Data {
		ret[i] = fmt.Sprint(v)
	}
	return "{" + strings.Join(ret, ", ") + "}"
}
