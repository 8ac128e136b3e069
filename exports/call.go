package exports

// Call describes one invocation of an exported function as seen by middleware.
type Call struct {
	values    map[any]any
	body      func() error
	Operation string
}

func newCall(op string, body func() error) *Call {
	return &Call{Operation: op, body: body}
}

// SetValue stores a call-scoped value.
func (c *Call) SetValue(key, value any) {
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = value
}

// GetValue retrieves a call-scoped value set by SetValue.
func (c *Call) GetValue(key any) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}
