package manta

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	storSegment = "stor"
	jobsSegment = "jobs"
)

// Path is a logical path resolved into the service namespace.
//
// Object paths live under /<user>/stor, job scoped storage under
// /<user>/jobs/<uuid>/stor. Paths outside either hierarchy are kept as
// given and have an empty Root.
type Path struct {
	clean string
	user  string
	root  string
	rel   []string
}

// ResolvePath maps p into the namespace of user. Paths that already name a
// storage hierarchy are used as is; anything else is taken relative to
// /<user>/stor. With an empty user the path must be fully qualified.
func ResolvePath(p, user string) Path {
	var full string
	switch {
	case user == "":
		full = p
	case isStorageQualified(p):
		full = p
	default:
		full = "/" + user + "/" + storSegment + "/" + p
	}
	return parsePath(cleanPath(full))
}

// ParsePath classifies an already qualified path.
func ParsePath(p string) Path {
	return parsePath(cleanPath(p))
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

func parsePath(clean string) Path {
	out := Path{clean: clean}
	segs := splitSegments(clean)
	if len(segs) < 2 || !isWordSegment(segs[0]) {
		return out
	}

	switch {
	case segs[1] == storSegment:
		out.user = segs[0]
		out.root = "/" + segs[0] + "/" + storSegment
		out.rel = segs[2:]
	case segs[1] == jobsSegment && len(segs) >= 4 && isJobID(segs[2]) && segs[3] == storSegment:
		out.user = segs[0]
		out.root = "/" + strings.Join(segs[:4], "/")
		out.rel = segs[4:]
	}
	return out
}

func isStorageQualified(p string) bool {
	return ParsePath(p).root != "" && strings.HasPrefix(p, "/")
}

func splitSegments(clean string) []string {
	trimmed := strings.Trim(clean, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// isWordSegment matches a user name: ASCII letters, digits and underscore.
func isWordSegment(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

// isJobID matches a canonical lower case 8-4-4-4-12 job identifier.
func isJobID(s string) bool {
	if len(s) != 36 || strings.ToLower(s) != s {
		return false
	}
	return uuid.Validate(s) == nil
}

// String returns the normalized absolute path.
func (p Path) String() string { return p.clean }

// User returns the namespace owner, or "" when the path is not in a storage hierarchy.
func (p Path) User() string { return p.user }

// Root returns the storage hierarchy root the path lives under.
func (p Path) Root() string { return p.root }

// IsStorage reports whether the path is under /<user>/stor.
func (p Path) IsStorage() bool {
	return p.root != "" && !p.IsJobStorage()
}

// IsJobStorage reports whether the path is under /<user>/jobs/<uuid>/stor.
func (p Path) IsJobStorage() bool {
	return strings.Contains(p.root, "/"+jobsSegment+"/")
}

// IsRoot reports whether the path is a storage hierarchy root itself.
func (p Path) IsRoot() bool {
	return p.root != "" && len(p.rel) == 0
}

// Segments returns the path components below Root.
func (p Path) Segments() []string {
	out := make([]string, len(p.rel))
	copy(out, p.rel)
	return out
}

// Base returns the last element of the path.
func (p Path) Base() string { return path.Base(p.clean) }

// Join appends name to the path.
func (p Path) Join(name string) Path {
	return parsePath(cleanPath(p.clean + "/" + name))
}

// Ancestors returns every directory from the first segment below Root down
// to the path itself, in creation order.
func (p Path) Ancestors() []string {
	out := make([]string, 0, len(p.rel))
	cur := p.root
	for _, seg := range p.rel {
		cur += "/" + seg
		out = append(out, cur)
	}
	return out
}

// JobPath builds a job control path for user. id may be empty to address
// the job collection, and suffix elements are appended in order.
func JobPath(user, id string, suffix ...string) string {
	p := id
	if user != "" {
		p = "/" + user + "/" + jobsSegment + "/" + id
	}
	for _, s := range suffix {
		p += "/" + s
	}
	return strings.TrimSuffix(cleanPath(p), "/")
}

// JobID strips a job location down to the identifier following /jobs/.
func JobID(location string) string {
	if i := strings.LastIndex(location, "/"+jobsSegment+"/"); i >= 0 {
		return location[i+len(jobsSegment)+2:]
	}
	return location
}

// IsStorageKey reports whether key names an object under some /<user>/stor hierarchy.
func IsStorageKey(key string) bool {
	return strings.HasPrefix(key, "/") && strings.Contains(key, "/"+storSegment+"/")
}
