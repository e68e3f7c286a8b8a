package store

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Inspect writes a human-readable dump of the store to w: a summary line
// and one line per key in sorted order. Detailed() adds lock attributes,
// value types and the bound callables; WithValues() adds values. The output
// format is for debugging and may change.
func (s *Store) Inspect(w io.Writer, opts ...InspectOption) error {
	var o inspectOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	st := s.state
	names := make([]string, 0, len(s.bindings))
	types := make(map[string]string, len(s.bindings))
	for name, fn := range s.bindings {
		names = append(names, name)
		types[name] = fmt.Sprintf("%T", fn)
	}
	s.mu.Unlock()
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "state: %s, %s\n",
		plural(st.Len(), "entry", "entries"),
		plural(len(names), "binding", "bindings"))

	for _, key := range st.Keys() {
		e, ok := st.lookup(key)
		if !ok {
			continue
		}
		b.WriteString("  ")
		b.WriteString(key)
		if o.detailed {
			if e.locked {
				b.WriteString(" [locked]")
			} else {
				b.WriteString(" [writable]")
			}
			fmt.Fprintf(&b, " (%T)", e.value)
		}
		if o.values {
			b.WriteString(" = ")
			b.WriteString(formatValue(e.value))
		}
		b.WriteString("\n")
	}

	if o.detailed && len(names) > 0 {
		b.WriteString("bindings:\n")
		for _, name := range names {
			fmt.Fprintf(&b, "  %s (%s)\n", name, types[name])
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// InspectString returns the Inspect dump as a string.
func (s *Store) InspectString(opts ...InspectOption) string {
	var b strings.Builder
	s.Inspect(&b, opts...)
	return b.String()
}

// formatValue renders v as JSON, falling back to %v for values JSON cannot
// encode.
func formatValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
