package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrVariableExists is returned when a node tries to bind a name that an
// earlier node (or the trigger payload) already bound.
var ErrVariableExists = errors.New("variable already exists in context")

// Context is the variable bag threaded through a workflow run. It is never
// mutated in place: With returns a new Context and leaves the receiver as is.
type Context struct {
	values map[string]any
}

// NewContext seeds a context with a shallow copy of initial.
func NewContext(initial map[string]any) Context {
	return Context{values: maps.Clone(initial)}
}

func (c Context) Len() int {
	return len(c.values)
}

func (c Context) Get(key string) (any, bool) {
	value, ok := c.values[key]

	return value, ok
}

func (c Context) Has(key string) bool {
	_, ok := c.values[key]

	return ok
}

// Keys returns the bound names in sorted order.
func (c Context) Keys() []string {
	return slices.Sorted(maps.Keys(c.values))
}

// With binds key to value in a copy of c.
func (c Context) With(key string, value any) (Context, error) {
	if _, ok := c.values[key]; ok {
		return c, fmt.Errorf("%w: %q", ErrVariableExists, key)
	}

	values := make(map[string]any, len(c.values)+1)
	maps.Copy(values, c.values)
	values[key] = value

	return Context{values: values}, nil
}

// Map returns a shallow copy of the bound values, suitable for template data.
func (c Context) Map() map[string]any {
	if c.values == nil {
		return map[string]any{}
	}

	return maps.Clone(c.values)
}

func (c Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

func (c *Context) UnmarshalJSON(data []byte) error {
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}

	c.values = values

	return nil
}
