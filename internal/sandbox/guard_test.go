package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/investmcp/internal/core"
)

func newGuard(t *testing.T) *Guard {
	t.Helper()
	g, err := New(t.TempDir())
	require.NoError(t, err)
	return g
}

func TestNew_RejectsMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestNew_RejectsFileRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := New(file)
	require.ErrorIs(t, err, core.ErrNotADirectory)
}

func TestResolve_InsideRoot(t *testing.T) {
	g := newGuard(t)

	tests := []struct {
		name string
		rel  string
		want string
	}{
		{name: "plain file", rel: "notes.md", want: "notes.md"},
		{name: "nested missing", rel: "a/b/c.json", want: "a/b/c.json"},
		{name: "dot segments", rel: "./a/../b/./c.txt", want: "b/c.txt"},
		{name: "root itself", rel: ".", want: "."},
		{name: "empty is root", rel: "", want: "."},
		{name: "dotdot back inside", rel: "a/../../" + filepath.Base(g.Root()) + "/x", want: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := g.Resolve(tt.rel)
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(p.Abs))
			assert.True(t, strings.HasPrefix(p.Abs, g.Root()))
			assert.Equal(t, tt.rel, p.Rel)
			assert.Equal(t, tt.want, g.MustRel(p))
		})
	}
}

func TestResolve_Escapes(t *testing.T) {
	g := newGuard(t)

	tests := []struct {
		name string
		rel  string
	}{
		{name: "parent", rel: ".."},
		{name: "parent file", rel: "../secret.txt"},
		{name: "deep escape", rel: "a/b/../../../../etc/passwd"},
		{name: "absolute outside", rel: "/etc/passwd"},
		{name: "sibling sharing prefix", rel: "../" + filepath.Base(g.Root()) + "-evil/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Resolve(tt.rel)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrContainment)

			var ce *ContainmentError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.rel, ce.Path)
		})
	}
}

func TestResolve_AbsoluteInsideRoot(t *testing.T) {
	g := newGuard(t)

	p, err := g.Resolve(filepath.Join(g.Root(), "db", "errors.json"))
	require.NoError(t, err)
	assert.Equal(t, "db/errors.json", g.MustRel(p))
}

func TestResolve_SymlinkEscape(t *testing.T) {
	g := newGuard(t)
	outside := t.TempDir()

	require.NoError(t, os.Symlink(outside, filepath.Join(g.Root(), "link")))

	_, err := g.Resolve("link/file.txt")
	assert.ErrorIs(t, err, core.ErrContainment)
}

func TestResolve_DanglingSymlinkEscape(t *testing.T) {
	g := newGuard(t)
	target := filepath.Join(t.TempDir(), "not-yet-created")

	require.NoError(t, os.Symlink(target, filepath.Join(g.Root(), "dangling")))

	_, err := g.Resolve("dangling")
	assert.ErrorIs(t, err, core.ErrContainment)
}

func TestResolve_SymlinkInsideRoot(t *testing.T) {
	g := newGuard(t)
	require.NoError(t, os.MkdirAll(filepath.Join(g.Root(), "real"), 0o755))
	require.NoError(t, os.Symlink("real", filepath.Join(g.Root(), "alias")))

	p, err := g.Resolve("alias/data.csv")
	require.NoError(t, err)
	assert.Equal(t, "real/data.csv", g.MustRel(p))
}

func TestResolve_LinkKeepsFinalSymlink(t *testing.T) {
	g := newGuard(t)
	require.NoError(t, os.MkdirAll(filepath.Join(g.Root(), "real"), 0o755))
	require.NoError(t, os.Symlink("real", filepath.Join(g.Root(), "alias")))
	require.NoError(t, os.WriteFile(filepath.Join(g.Root(), "real", "target.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink("target.txt", filepath.Join(g.Root(), "real", "link.txt")))

	p, err := g.Resolve("alias/link.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(g.Root(), "real", "target.txt"), p.Abs)
	assert.Equal(t, filepath.Join(g.Root(), "real", "link.txt"), p.Link)

	root, err := g.Resolve(".")
	require.NoError(t, err)
	assert.Equal(t, g.Root(), root.Link)
}

func TestResolve_LinkToOutsideIsRejected(t *testing.T) {
	g := newGuard(t)
	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("s"), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(g.Root(), "out.txt")))

	_, err := g.Resolve("out.txt")
	assert.ErrorIs(t, err, core.ErrContainment)
}

func TestWithin(t *testing.T) {
	root := filepath.FromSlash("/srv/root")

	assert.True(t, Within(root, root))
	assert.True(t, Within(root, filepath.FromSlash("/srv/root/a/b")))
	assert.True(t, Within(root, filepath.FromSlash("/srv/root/..data")))
	assert.False(t, Within(root, filepath.FromSlash("/srv/root-evil")))
	assert.False(t, Within(root, filepath.FromSlash("/srv")))
	assert.False(t, Within(root, filepath.FromSlash("/etc/passwd")))
}
