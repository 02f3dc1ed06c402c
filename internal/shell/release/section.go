package release

import (
	"fmt"
	"io"
	"time"
)

// Section brackets CI log output in a collapsible group:
//
//	::group::BUILD
//	...
//	BUILD: 12.34s
//	::endgroup::
type Section struct {
	name  string
	out   io.Writer
	now   func() time.Time
	start time.Time
}

// StartSection prints the group header.
func StartSection(out io.Writer, name string, now func() time.Time) *Section {
	if now == nil {
		now = time.Now
	}
	fmt.Fprintf(out, "::group::%s\n", name)
	return &Section{name: name, out: out, now: now, start: now()}
}

// End prints the elapsed time and closes the group.
func (s *Section) End() {
	elapsed := s.now().Sub(s.start)
	fmt.Fprintf(s.out, "%s: %.2fs\n", s.name, elapsed.Seconds())
	fmt.Fprintln(s.out, "::endgroup::")
}
