// Package sandbox confines caller-supplied paths to a single workspace root.
//
// Every filesystem touch in the server goes through [Guard.Resolve]. The
// guard canonicalizes the joined path (lexical cleanup plus symlink
// evaluation of every component that exists) and rejects any result that is
// not the root or a descendant of it. The comparison is segment-aware, so a
// sibling such as "/srv/root-evil" never passes for root "/srv/root".
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/investmcp/internal/core"
)

// maxLinkHops bounds symlink chains followed while resolving missing tails.
const maxLinkHops = 40

// Guard resolves relative paths against an immutable root.
type Guard struct {
	root string
}

// GuardedPath is a validated absolute path plus the caller's original
// string, which is kept for messages. It is created per call and never cached.
//
// Abs has every symlink followed. Link follows symlinks in the parent
// directories only, so it names a final-component link itself; operations
// that act on directory entries (remove, rename, lstat) use Link.
type GuardedPath struct {
	Abs  string
	Link string
	Rel  string
}

// ContainmentError reports a path whose canonical form leaves the root.
type ContainmentError struct {
	Path     string
	Resolved string
	Root     string
}

func (e *ContainmentError) Error() string {
	return fmt.Sprintf("invalid path access detected: %q resolves to %q outside %q", e.Path, e.Resolved, e.Root)
}

func (e *ContainmentError) Unwrap() error {
	return core.ErrContainment
}

// New creates a Guard rooted at root. The root must exist; it is made
// absolute and canonical once.
func New(root string) (*Guard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("absolute root %q: %w", root, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("stat root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %q: %w", root, core.ErrNotADirectory)
	}
	return &Guard{root: filepath.Clean(canonical)}, nil
}

// Root returns the canonical root directory.
func (g *Guard) Root() string {
	return g.root
}

// Resolve joins rel onto the root, canonicalizes it and verifies containment.
// Absolute inputs are canonicalized as given and must still land inside root.
func (g *Guard) Resolve(rel string) (GuardedPath, error) {
	joined := rel
	if !filepath.IsAbs(rel) {
		joined = filepath.Join(g.root, rel)
	}
	cleaned := filepath.Clean(joined)

	// Lexical check first so "../" escapes never touch the filesystem
	if !Within(g.root, cleaned) {
		return GuardedPath{}, &ContainmentError{Path: rel, Resolved: cleaned, Root: g.root}
	}

	resolved, err := canonicalize(cleaned, 0)
	if err != nil {
		return GuardedPath{}, fmt.Errorf("resolve %q: %w", rel, err)
	}
	if !Within(g.root, resolved) {
		return GuardedPath{}, &ContainmentError{Path: rel, Resolved: resolved, Root: g.root}
	}

	link := resolved
	if cleaned != g.root {
		dir, err := canonicalize(filepath.Dir(cleaned), 0)
		if err != nil {
			return GuardedPath{}, fmt.Errorf("resolve %q: %w", rel, err)
		}
		link = filepath.Join(dir, filepath.Base(cleaned))
		if !Within(g.root, link) {
			return GuardedPath{}, &ContainmentError{Path: rel, Resolved: link, Root: g.root}
		}
	}

	return GuardedPath{Abs: resolved, Link: link, Rel: rel}, nil
}

// MustRel returns p relative to the root for display. p must be guarded.
func (g *Guard) MustRel(p GuardedPath) string {
	r, err := filepath.Rel(g.root, p.Abs)
	if err != nil {
		return p.Rel
	}
	return filepath.ToSlash(r)
}

// Within reports whether p is root or lies below it, comparing whole
// path segments.
func Within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	if filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// canonicalize evaluates symlinks on the deepest existing ancestor of p and
// re-appends the missing tail. A dangling symlink in the path is followed by
// hand so that writing through it cannot create a file outside the root.
func canonicalize(p string, hops int) (string, error) {
	if hops > maxLinkHops {
		return "", fmt.Errorf("too many levels of symbolic links: %s", p)
	}

	var tail []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		if info, lerr := os.Lstat(cur); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
			target, rerr := os.Readlink(cur)
			if rerr != nil {
				return "", rerr
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(cur), target)
			}
			return canonicalize(filepath.Join(append([]string{target}, tail...)...), hops+1)
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}
