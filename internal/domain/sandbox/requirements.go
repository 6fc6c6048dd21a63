package sandbox

import (
	"regexp"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"
)

// Requirement is one line of a requirements file.
type Requirement struct {
	Line   string
	Name   string
	Specs  []VersionSpec
	Marker string
	// URL is set for direct references ("name @ url", "git+...#egg=name").
	URL string
}

type VersionSpec struct {
	Op      string
	Version string
}

var (
	requirementPattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(\[[^\]]*\])?\s*([^;]*?)\s*(?:;\s*(.*))?$`)
	specPattern        = regexp.MustCompile(`^(===|~=|==|!=|<=|>=|<|>)\s*(\S+)$`)
	eggPattern         = regexp.MustCompile(`[#&]egg=([A-Za-z0-9._-]+)`)
	nameSeparators     = regexp.MustCompile(`[-_.]+`)
	markerClause       = regexp.MustCompile(`^([A-Za-z_]+|'[^']*'|"[^"]*")\s*(===|==|!=|<=|>=|<|>|~=|not in|in)\s*([A-Za-z_]+|'[^']*'|"[^"]*")$`)
)

// NormalizeName folds a package name the way the installer compares them.
func NormalizeName(name string) string {
	return nameSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// ParseRequirements reads requirement lines, skipping comments, blank lines
// and installer options.
func ParseRequirements(text string) []Requirement {
	var out []Requirement
	for _, raw := range strings.Split(text, "\n") {
		line := raw
		if i := strings.Index(line, " #"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if req, ok := ParseRequirement(line); ok {
			out = append(out, req)
		}
	}
	return out
}

func ParseRequirement(line string) (Requirement, bool) {
	line = strings.TrimSpace(line)
	body, marker, _ := strings.Cut(line, ";")
	body = strings.TrimSpace(body)
	marker = strings.TrimSpace(marker)

	if name, url, ok := strings.Cut(body, " @ "); ok {
		return Requirement{Line: line, Name: NormalizeName(name), URL: strings.TrimSpace(url), Marker: marker}, true
	}
	if strings.HasPrefix(body, "git+") || strings.Contains(body, "://") {
		match := eggPattern.FindStringSubmatch(body)
		if match == nil {
			return Requirement{}, false
		}
		return Requirement{Line: line, Name: NormalizeName(match[1]), URL: body, Marker: marker}, true
	}

	match := requirementPattern.FindStringSubmatch(line)
	if match == nil {
		return Requirement{}, false
	}
	req := Requirement{Line: line, Name: NormalizeName(match[1]), Marker: strings.TrimSpace(match[4])}
	if specs := strings.TrimSpace(match[3]); specs != "" {
		for _, part := range strings.Split(specs, ",") {
			sm := specPattern.FindStringSubmatch(strings.TrimSpace(part))
			if sm == nil {
				return Requirement{}, false
			}
			req.Specs = append(req.Specs, VersionSpec{Op: sm[1], Version: sm[2]})
		}
	}
	return req, true
}

// Applies evaluates the environment marker for the given interpreter version
// and platform. Markers on unknown variables are treated as satisfied.
func (r Requirement) Applies(pythonVersion, platform string) bool {
	if r.Marker == "" {
		return true
	}
	vars := map[string]string{
		"python_version":      pythonVersion,
		"python_full_version": pythonVersion,
		"sys_platform":        platform,
		"platform_system":     platformSystem(platform),
	}
	marker := strings.NewReplacer("(", " ", ")", " ").Replace(r.Marker)
	for _, alternative := range strings.Split(marker, " or ") {
		all := true
		for _, clause := range strings.Split(alternative, " and ") {
			if !evalClause(strings.TrimSpace(clause), vars) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func evalClause(clause string, vars map[string]string) bool {
	match := markerClause.FindStringSubmatch(clause)
	if match == nil {
		return true
	}
	left, lok := markerValue(match[1], vars)
	right, rok := markerValue(match[3], vars)
	if !lok || !rok {
		return true
	}
	op := match[2]
	switch op {
	case "in":
		return strings.Contains(right, left)
	case "not in":
		return !strings.Contains(right, left)
	}
	isVersion := match[1] == "python_version" || match[3] == "python_version" ||
		match[1] == "python_full_version" || match[3] == "python_full_version"
	if !isVersion {
		switch op {
		case "==", "===":
			return left == right
		case "!=":
			return left != right
		}
		return true
	}
	return VersionSpec{Op: op, Version: right}.Matches(left)
}

func markerValue(token string, vars map[string]string) (string, bool) {
	if strings.HasPrefix(token, "'") || strings.HasPrefix(token, `"`) {
		return token[1 : len(token)-1], true
	}
	value, ok := vars[token]
	return value, ok
}

func platformSystem(platform string) string {
	switch platform {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "win32":
		return "Windows"
	}
	return platform
}

// SatisfiedBy reports whether an installed version meets every spec. An
// empty installed version only satisfies unversioned requirements.
func (r Requirement) SatisfiedBy(installed string) bool {
	if r.URL != "" || len(r.Specs) == 0 {
		return true
	}
	if installed == "" {
		return false
	}
	for _, spec := range r.Specs {
		if !spec.Matches(installed) {
			return false
		}
	}
	return true
}

// Matches reports whether version satisfies the spec under PEP 440. When
// either side is not a PEP 440 version only the equality operators can
// decide, by exact text; the others count as satisfied.
func (s VersionSpec) Matches(version string) bool {
	if s.Op == "===" {
		return strings.EqualFold(version, s.Version)
	}
	installed, err := pep440.Parse(version)
	if err != nil {
		return s.matchText(version)
	}
	specifiers, err := pep440.NewSpecifiers(s.Op + s.Version)
	if err != nil {
		return s.matchText(version)
	}
	return specifiers.Check(installed)
}

func (s VersionSpec) matchText(version string) bool {
	switch s.Op {
	case "==":
		return version == s.Version
	case "!=":
		return version != s.Version
	}
	return true
}

// CompareVersions orders package versions by PEP 440, so 1.0.dev1 < 1.0rc1 <
// 1.0 < 1.0.post1. Versions that do not parse are compared as text.
func CompareVersions(a, b string) int {
	va, errA := pep440.Parse(a)
	vb, errB := pep440.Parse(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return va.Compare(vb)
}
