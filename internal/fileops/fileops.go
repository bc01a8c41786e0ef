// Package fileops implements the file primitives exposed to the agent.
//
// Every operation resolves its path arguments through the sandbox guard,
// performs one filesystem action and reports the outcome as a [Result].
// Nothing is returned as an error: the caller is a non-interactive agent that
// must keep going after a bad path, so faults become text plus an error log
// entry.
package fileops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/JonMunkholm/investmcp/internal/core"
	"github.com/JonMunkholm/investmcp/internal/errlog"
	"github.com/JonMunkholm/investmcp/internal/logging"
	"github.com/JonMunkholm/investmcp/internal/sandbox"
	"github.com/JonMunkholm/investmcp/internal/store"
)

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// Ops performs guarded file operations and reports faults to an error log.
type Ops struct {
	guard *sandbox.Guard
	log   *errlog.Log
}

// New creates Ops confined by guard and logging faults to log.
func New(guard *sandbox.Guard, log *errlog.Log) *Ops {
	return &Ops{guard: guard, log: log}
}

// fault records err and converts it to a fault Result.
func (o *Ops) fault(ctx context.Context, op string, err error) Result {
	logging.WithFields(ctx, "op", op).Warn("file operation failed", "error", err)
	o.log.Record(ctx, err.Error())
	return Result{
		Status:  StatusFault,
		Message: err.Error(),
		Code:    core.MapError(err).Code,
		Err:     err,
	}
}

// Read returns the content of the file at path.
func (o *Ops) Read(ctx context.Context, path string) Result {
	p, err := o.guard.Resolve(path)
	if err != nil {
		return o.fault(ctx, "read", err)
	}

	data, err := os.ReadFile(p.Abs)
	if errors.Is(err, fs.ErrNotExist) {
		return o.fault(ctx, "read", fmt.Errorf("file '%s' %w", path, core.ErrNotFound))
	}
	if err != nil {
		return o.fault(ctx, "read", err)
	}

	r := ok("Read '%s' (%d bytes)", path, len(data))
	r.Content = string(data)
	return r
}

// Create writes a new file and refuses to overwrite an existing one.
// A string content is written verbatim; any other value is written as
// indented JSON. Missing parent directories are created.
func (o *Ops) Create(ctx context.Context, path string, content any) Result {
	p, err := o.guard.Resolve(path)
	if err != nil {
		return o.fault(ctx, "create", err)
	}
	if content == nil {
		return o.fault(ctx, "create", fmt.Errorf("no content provided for '%s': %w", path, core.ErrMissingArgument))
	}

	data, err := encodeContent(content)
	if err != nil {
		return o.fault(ctx, "create", fmt.Errorf("encode content for '%s': %w", path, err))
	}

	if err := os.MkdirAll(filepath.Dir(p.Abs), dirPerm); err != nil {
		return o.fault(ctx, "create", err)
	}

	f, err := os.OpenFile(p.Abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if errors.Is(err, fs.ErrExist) {
		return o.fault(ctx, "create", fmt.Errorf("file '%s' %w", path, core.ErrAlreadyExists))
	}
	if err != nil {
		return o.fault(ctx, "create", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return o.fault(ctx, "create", err)
	}
	if err := f.Close(); err != nil {
		return o.fault(ctx, "create", err)
	}

	return ok("Code file '%s' created successfully.", path)
}

// Update replaces the full content of an existing file. It never creates.
func (o *Ops) Update(ctx context.Context, path string, newContent string) Result {
	p, err := o.guard.Resolve(path)
	if err != nil {
		return o.fault(ctx, "update", err)
	}

	info, err := os.Stat(p.Abs)
	if errors.Is(err, fs.ErrNotExist) {
		return o.fault(ctx, "update", fmt.Errorf("file '%s' %w", path, core.ErrNotFound))
	}
	if err != nil {
		return o.fault(ctx, "update", err)
	}
	if info.IsDir() {
		return o.fault(ctx, "update", fmt.Errorf("'%s' is a directory", path))
	}

	if err := store.WriteFileAtomic(p.Abs, []byte(newContent), info.Mode().Perm()); err != nil {
		return o.fault(ctx, "update", err)
	}

	return ok("Code in '%s' updated successfully.", path)
}

// Delete removes a file. Deleting a missing file is a warning, not a fault.
func (o *Ops) Delete(ctx context.Context, path string) Result {
	p, err := o.guard.Resolve(path)
	if err != nil {
		return o.fault(ctx, "delete", err)
	}

	info, err := os.Lstat(p.Link)
	if errors.Is(err, fs.ErrNotExist) {
		return warning(fmt.Errorf("file '%s' %w", path, core.ErrNotFound))
	}
	if err != nil {
		return o.fault(ctx, "delete", err)
	}
	if info.IsDir() {
		return o.fault(ctx, "delete", fmt.Errorf("'%s' is a directory", path))
	}

	if err := os.Remove(p.Link); err != nil {
		return o.fault(ctx, "delete", err)
	}

	return ok("Deleted file: '%s'", path)
}

// Move renames from to to, creating the destination's parent directories.
// A missing source is a warning.
func (o *Ops) Move(ctx context.Context, from, to string) Result {
	src, err := o.guard.Resolve(from)
	if err != nil {
		return o.fault(ctx, "move", err)
	}
	dst, err := o.guard.Resolve(to)
	if err != nil {
		return o.fault(ctx, "move", err)
	}

	if _, err := os.Lstat(src.Link); errors.Is(err, fs.ErrNotExist) {
		return warning(fmt.Errorf("source file '%s' %w", from, core.ErrNotFound))
	} else if err != nil {
		return o.fault(ctx, "move", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst.Link), dirPerm); err != nil {
		return o.fault(ctx, "move", err)
	}
	if err := os.Rename(src.Link, dst.Link); err != nil {
		return o.fault(ctx, "move", err)
	}

	return ok("Moved '%s' to '%s'", from, to)
}

// List returns the names of the direct children of dir, sorted.
func (o *Ops) List(ctx context.Context, dir string) Result {
	p, err := o.guard.Resolve(dir)
	if err != nil {
		return o.fault(ctx, "list", err)
	}

	info, err := os.Stat(p.Abs)
	if err != nil || !info.IsDir() {
		return o.fault(ctx, "list", fmt.Errorf("'%s' is %w", dir, core.ErrNotADirectory))
	}

	entries, err := os.ReadDir(p.Abs)
	if err != nil {
		return o.fault(ctx, "list", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	r := ok("%d entries in '%s'", len(names), o.guard.MustRel(p))
	r.Entries = names
	return r
}

// MakeDir creates dir and any missing parents. Existing directories are fine.
func (o *Ops) MakeDir(ctx context.Context, dir string) Result {
	p, err := o.guard.Resolve(dir)
	if err != nil {
		return o.fault(ctx, "mkdir", err)
	}
	if err := os.MkdirAll(p.Abs, dirPerm); err != nil {
		return o.fault(ctx, "mkdir", fmt.Errorf("failed to create directory '%s': %w", dir, err))
	}
	return ok("Directory '%s' created successfully.", dir)
}

func encodeContent(content any) ([]byte, error) {
	switch v := content.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return store.Marshal(v)
	}
}
