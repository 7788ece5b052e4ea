// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package combination

// productCursor walks the Cartesian product of its factors in lexicographic
// index order, rightmost factor fastest.
type productCursor struct {
	factors [][]string
	indices []int
	started bool
	done    bool
}

func newProductCursor(factors [][]string) *productCursor {
	c := &productCursor{factors: factors, indices: make([]int, len(factors))}
	// Zero factors is an empty product, not a single empty tuple.
	c.done = len(factors) == 0
	for _, f := range factors {
		if len(f) == 0 {
			c.done = true
		}
	}
	return c
}

// next returns a fresh copy of the current tuple and advances the cursor.
func (c *productCursor) next() ([]string, bool) {
	if c.done {
		return nil, false
	}
	if c.started && !c.advance() {
		c.done = true
		return nil, false
	}
	c.started = true
	tuple := make([]string, len(c.factors))
	for i, idx := range c.indices {
		tuple[i] = c.factors[i][idx]
	}
	return tuple, true
}

func (c *productCursor) advance() bool {
	for i := len(c.indices) - 1; i >= 0; i-- {
		c.indices[i]++
		if c.indices[i] < len(c.factors[i]) {
			return true
		}
		c.indices[i] = 0
	}
	return false
}
