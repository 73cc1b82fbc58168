package actorpath

import (
	"strings"

	"github.com/pkg/errors"
)

// Wildcards usable in patterns: SingleWildcard matches exactly one segment,
// DeepWildcard matches zero or more segments.
const (
	SingleWildcard = "*"
	DeepWildcard   = "**"
)

// Root is the root actor path
const Root = "/"

// SystemRoot is the reserved subtree for system actors
const SystemRoot = "/system"

// ErrInvalidPath is returned when a path is not absolute or contains an
// illegal segment
var ErrInvalidPath = errors.New("actorpath: invalid path")

// ErrInvalidPattern is returned when a pattern contains an illegal segment
var ErrInvalidPattern = errors.New("actorpath: invalid pattern")

// Path is a parsed, normalized, absolute actor path
type Path struct {
	str      string
	segments []string
}

// Parse parses and normalizes an absolute actor path.
//
// A path must start with '/' and every segment must match [a-zA-Z0-9_-]+.
// '.', '..' and empty segments are collapsed during normalization.
func Parse(path string) (*Path, error) {
	if p := pathCache.get(path); p != nil {
		return p.(*Path), nil
	}

	p, err := parseUncached(path)
	if err != nil {
		return nil, err
	}

	pathCache.put(path, p)
	return p, nil
}

func parseUncached(path string) (*Path, error) {
	if path == "" || path[0] != '/' {
		return nil, errors.Wrapf(ErrInvalidPath, "%q is not absolute", path)
	}

	rawSegs := strings.Split(path[1:], "/")
	segments := make([]string, 0, len(rawSegs))
	for _, seg := range rawSegs {
		if seg == "" || seg == "." {
			continue
		}
		if seg == ".." {
			if len(segments) == 0 {
				return nil, errors.Wrapf(ErrInvalidPath, "%q escapes the root", path)
			}
			segments = segments[:len(segments)-1]
			continue
		}
		if !IsValidName(seg) {
			return nil, errors.Wrapf(ErrInvalidPath, "%q contains illegal segment %q", path, seg)
		}
		segments = append(segments, seg)
	}

	return &Path{
		str:      "/" + strings.Join(segments, "/"),
		segments: segments,
	}, nil
}

// Normalize collapses '.', '..' and empty segments of an absolute path
func Normalize(path string) (string, error) {
	p, err := Parse(path)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

// IsValidName checks if name is a legal actor name ([a-zA-Z0-9_-]+)
func IsValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-' {
			continue
		}
		return false
	}
	return true
}

// String returns the normalized path string
func (p *Path) String() string {
	return p.str
}

// Segments returns the path segments; the returned slice must not be modified
func (p *Path) Segments() []string {
	return p.segments
}

// Name returns the last segment of the path, or "" for the root path
func (p *Path) Name() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Parent returns the parent path; the parent of the root is the root itself
func (p *Path) Parent() string {
	if len(p.segments) <= 1 {
		return Root
	}
	return "/" + strings.Join(p.segments[:len(p.segments)-1], "/")
}

// Child builds the path of the named child
func (p *Path) Child(name string) (string, error) {
	if !IsValidName(name) {
		return "", errors.Wrapf(ErrInvalidPath, "illegal child name %q", name)
	}
	if p.str == Root {
		return Root + name, nil
	}
	return p.str + "/" + name, nil
}

// IsAncestorOf checks if p is a strict ancestor of other
func (p *Path) IsAncestorOf(other *Path) bool {
	if len(p.segments) >= len(other.segments) {
		return false
	}
	for i, seg := range p.segments {
		if other.segments[i] != seg {
			return false
		}
	}
	return true
}

// BuildChildPath builds the path of the named child under parent
func BuildChildPath(parent string, name string) (string, error) {
	p, err := Parse(parent)
	if err != nil {
		return "", err
	}
	return p.Child(name)
}

// GetParentPath returns the parent of the normalized path
func GetParentPath(path string) (string, error) {
	p, err := Parse(path)
	if err != nil {
		return "", err
	}
	return p.Parent(), nil
}

// GetName returns the last segment of the normalized path
func GetName(path string) (string, error) {
	p, err := Parse(path)
	if err != nil {
		return "", err
	}
	return p.Name(), nil
}

// IsAncestor checks if ancestor is a strict ancestor of path
func IsAncestor(ancestor string, path string) (bool, error) {
	a, err := Parse(ancestor)
	if err != nil {
		return false, err
	}
	p, err := Parse(path)
	if err != nil {
		return false, err
	}
	return a.IsAncestorOf(p), nil
}

// GetCommonAncestor returns the deepest common ancestor of two paths
func GetCommonAncestor(path1 string, path2 string) (string, error) {
	p1, err := Parse(path1)
	if err != nil {
		return "", err
	}
	p2, err := Parse(path2)
	if err != nil {
		return "", err
	}

	common := make([]string, 0, len(p1.segments))
	for i, seg := range p1.segments {
		if i >= len(p2.segments) || p2.segments[i] != seg {
			break
		}
		common = append(common, seg)
	}
	return "/" + strings.Join(common, "/"), nil
}

// IsSystemPath checks if path lies in the reserved /system subtree
func IsSystemPath(path string) bool {
	norm, err := Normalize(path)
	if err != nil {
		return false
	}
	return norm == SystemRoot || strings.HasPrefix(norm, SystemRoot+"/")
}
