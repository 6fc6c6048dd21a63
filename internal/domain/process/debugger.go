package process

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var debuggerPattern = regexp.MustCompile(`(i?pu?db)\.set_trace\(|\bbreakpoint\(\)`)

// FindDebugger scans the python sources under roots for interactive debugger
// calls and returns the first one as "file:line".
func FindDebugger(roots []string) (string, bool) {
	for _, root := range roots {
		var found string
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".py" {
				return nil
			}
			if line, ok := scanFile(path); ok {
				found = fmt.Sprintf("%s:%d", path, line)
				return filepath.SkipAll
			}
			return nil
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

func scanFile(path string) (int, bool) {
	file, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for n := 1; scanner.Scan(); n++ {
		code, _, _ := strings.Cut(scanner.Text(), "#")
		if debuggerPattern.MatchString(code) {
			return n, true
		}
	}
	return 0, false
}
