package sandbox

import (
	"sort"

	"github.com/tasuku43/ovm/internal/domain/version"
)

// interpreters maps the first major release needing an interpreter to that
// interpreter's version.
var interpreters = map[int]string{
	0:  "2.7",
	11: "3.7",
	14: "3.8",
	16: "3.10",
	18: "3.12",
}

// InterpreterVersionFor returns the interpreter for v, using the closest
// entry at or below its major. Master gets the newest interpreter.
func InterpreterVersionFor(v version.Version) string {
	majors := make([]int, 0, len(interpreters))
	for major := range interpreters {
		majors = append(majors, major)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(majors)))
	if v.Master() {
		return interpreters[majors[0]]
	}
	for _, major := range majors {
		if v.Major() >= major {
			return interpreters[major]
		}
	}
	return interpreters[majors[len(majors)-1]]
}
