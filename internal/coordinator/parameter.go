package coordinator

import "unicode/utf8"

// DefaultBufferSize is the input length used when a parameter is registered
// without one
const DefaultBufferSize = 64

// Parameter is a named provisioning field shown in the portal.
// Only ID and Value are persisted; Placeholder is a display hint.
type Parameter struct {
	ID          string `json:"id"`
	Placeholder string `json:"placeholder"`
	BufferSize  int    `json:"buffer_size"`
	Value       string `json:"value"`
}

// Accept clips v to the parameter's buffer size without splitting a
// multi-byte character
func (p Parameter) Accept(v string) string {
	size := p.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	if len(v) <= size {
		return v
	}
	v = v[:size]
	for len(v) > 0 {
		r, n := utf8.DecodeLastRuneInString(v)
		if r != utf8.RuneError || n != 1 {
			break
		}
		v = v[:len(v)-1]
	}
	return v
}
