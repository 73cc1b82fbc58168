package actorpath

import (
	"strings"

	"github.com/pkg/errors"
)

// Pattern is a compiled path pattern; '*' matches exactly one segment, '**'
// matches zero or more segments. Matching is always anchored at both ends.
type Pattern struct {
	str      string
	segments []string
}

// CompilePattern parses and compiles a path pattern
func CompilePattern(pattern string) (*Pattern, error) {
	if p := patternCache.get(pattern); p != nil {
		return p.(*Pattern), nil
	}

	if pattern == "" || pattern[0] != '/' {
		return nil, errors.Wrapf(ErrInvalidPattern, "%q is not absolute", pattern)
	}

	rawSegs := strings.Split(pattern[1:], "/")
	segments := make([]string, 0, len(rawSegs))
	for _, seg := range rawSegs {
		if seg == "" {
			continue
		}
		if seg != SingleWildcard && seg != DeepWildcard && !IsValidName(seg) {
			return nil, errors.Wrapf(ErrInvalidPattern, "%q contains illegal segment %q", pattern, seg)
		}
		segments = append(segments, seg)
	}

	p := &Pattern{
		str:      "/" + strings.Join(segments, "/"),
		segments: segments,
	}
	patternCache.put(pattern, p)
	return p, nil
}

// String returns the normalized pattern string
func (pat *Pattern) String() string {
	return pat.str
}

// Matches checks if the pattern matches the whole path
func (pat *Pattern) Matches(path *Path) bool {
	return matchSegments(pat.segments, path.segments)
}

// Match checks if pattern matches path; the whole path must be covered
func Match(pattern string, path string) (bool, error) {
	pat, err := CompilePattern(pattern)
	if err != nil {
		return false, err
	}
	p, err := Parse(path)
	if err != nil {
		return false, err
	}
	return pat.Matches(p), nil
}

func matchSegments(pattern []string, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}

	head := pattern[0]
	if head == DeepWildcard {
		// try consuming 0..len(segs) segments
		for skip := 0; skip <= len(segs); skip++ {
			if matchSegments(pattern[1:], segs[skip:]) {
				return true
			}
		}
		return false
	}

	if len(segs) == 0 {
		return false
	}
	if head != SingleWildcard && head != segs[0] {
		return false
	}
	return matchSegments(pattern[1:], segs[1:])
}
