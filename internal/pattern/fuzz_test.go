package pattern

import "testing"

// FuzzCompile checks that arbitrary pattern input either compiles to a
// usable matcher or fails cleanly, and never panics.
func FuzzCompile(f *testing.F) {
	f.Add(`@example\.com$`)
	f.Add(`(a+)+$`)
	f.Add(`[unclosed`)
	f.Add(``)
	f.Add(`(?i)URGENT`)
	f.Add(`a{2,}b{3,}`)

	f.Fuzz(func(t *testing.T, p string) {
		m, err := Compile(p)
		if err != nil {
			if m != nil {
				t.Error("failed compile must not return a matcher")
			}
			return
		}
		// A successful compile must yield a matcher safe to use.
		m.MatchString("probe@example.com probe subject line")
		if m.String() != p {
			t.Errorf("String() = %q, want source %q", m.String(), p)
		}
	})
}
