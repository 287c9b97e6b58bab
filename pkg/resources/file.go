package resources

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/provisor/provisor/pkg/engine"
)

// File converges a file on disk to exact content and permissions. Writes go
// through a temp file in the target directory followed by a rename, so a
// reader never observes partial content.
type File struct {
	base
	path    string
	content []byte
	mode    os.FileMode
	owner   string
	group   string
}

// NewFile declares a file resource. mode zero defaults to 0644.
func NewFile(name string, deps []string, path string, content []byte, mode os.FileMode, owner, group string) *File {
	if mode == 0 {
		mode = 0644
	}
	return &File{
		base:    base{name: name, deps: deps},
		path:    path,
		content: content,
		mode:    mode,
		owner:   owner,
		group:   group,
	}
}

func (f *File) Kind() string     { return KindFile }
func (f *File) Identity() string { return identity(KindFile, f.path) }

// Check compares the on-disk file against the declared content, mode, and
// ownership.
func (f *File) Check(ctx context.Context) (engine.Observation, error) {
	info, err := os.Lstat(f.path)
	if os.IsNotExist(err) {
		return engine.Observation{Pending: fmt.Sprintf("create %s", f.path)}, nil
	}
	if err != nil {
		return engine.Observation{}, engine.NewError(engine.ErrProbeUnavailable,
			fmt.Sprintf("stat %s", f.path), err)
	}
	if !info.Mode().IsRegular() {
		return engine.Observation{
			Pending: fmt.Sprintf("replace %s (not a regular file)", f.path),
		}, nil
	}

	current, err := os.ReadFile(f.path)
	if err != nil {
		return engine.Observation{}, engine.NewError(engine.ErrProbeUnavailable,
			fmt.Sprintf("read %s", f.path), err)
	}
	if sha256.Sum256(current) != sha256.Sum256(f.content) {
		return engine.Observation{
			Pending: fmt.Sprintf("rewrite %s (content drift)", f.path),
		}, nil
	}
	if info.Mode().Perm() != f.mode.Perm() {
		return engine.Observation{
			Pending: fmt.Sprintf("chmod %s %s -> %s", f.path, info.Mode().Perm(), f.mode.Perm()),
		}, nil
	}

	if f.owner != "" || f.group != "" {
		uid, gid, err := f.declaredIDs()
		if err != nil {
			return engine.Observation{}, err
		}
		if st, ok := info.Sys().(*syscall.Stat_t); ok {
			if (uid >= 0 && int(st.Uid) != uid) || (gid >= 0 && int(st.Gid) != gid) {
				return engine.Observation{
					Pending: fmt.Sprintf("chown %s %s:%s", f.path, f.owner, f.group),
				}, nil
			}
		}
	}

	return engine.Observation{Converged: true}, nil
}

// Apply writes the declared content atomically and fixes permissions and
// ownership.
func (f *File) Apply(ctx context.Context) error {
	// Content already matching means only the metadata drifted; skip the
	// rewrite so the inode and mtime survive.
	if current, err := os.ReadFile(f.path); err == nil && bytes.Equal(current, f.content) {
		if err := os.Chmod(f.path, f.mode.Perm()); err != nil {
			return engine.NewError(engine.ErrIO, fmt.Sprintf("chmod %s", f.path), err)
		}
		return f.chown(f.path)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return engine.NewError(engine.ErrIO, fmt.Sprintf("create directory %s", dir), err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return engine.NewError(engine.ErrIO, fmt.Sprintf("create temp file in %s", dir), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(f.content); err != nil {
		tmp.Close()
		return engine.NewError(engine.ErrIO, fmt.Sprintf("write %s", tmp.Name()), err)
	}
	if err := tmp.Chmod(f.mode.Perm()); err != nil {
		tmp.Close()
		return engine.NewError(engine.ErrIO, fmt.Sprintf("chmod %s", tmp.Name()), err)
	}
	if err := tmp.Close(); err != nil {
		return engine.NewError(engine.ErrIO, fmt.Sprintf("close %s", tmp.Name()), err)
	}
	if err := f.chown(tmp.Name()); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return engine.NewError(engine.ErrIO, fmt.Sprintf("rename into %s", f.path), err)
	}
	return nil
}

// declaredIDs resolves the declared owner and group to numeric ids. Names
// and numeric ids are both accepted; an unset field resolves to -1.
func (f *File) declaredIDs() (int, int, error) {
	uid, gid := -1, -1
	if f.owner != "" {
		id, err := lookupID(f.owner, func(s string) (string, error) {
			u, err := user.Lookup(s)
			if err != nil {
				return "", err
			}
			return u.Uid, nil
		})
		if err != nil {
			return 0, 0, engine.NewError(engine.ErrValidation,
				fmt.Sprintf("unknown owner %q", f.owner), err)
		}
		uid = id
	}
	if f.group != "" {
		id, err := lookupID(f.group, func(s string) (string, error) {
			g, err := user.LookupGroup(s)
			if err != nil {
				return "", err
			}
			return g.Gid, nil
		})
		if err != nil {
			return 0, 0, engine.NewError(engine.ErrValidation,
				fmt.Sprintf("unknown group %q", f.group), err)
		}
		gid = id
	}
	return uid, gid, nil
}

// chown applies the declared owner and group, when any.
func (f *File) chown(path string) error {
	if f.owner == "" && f.group == "" {
		return nil
	}

	uid, gid, err := f.declaredIDs()
	if err != nil {
		return err
	}
	if err := os.Chown(path, uid, gid); err != nil {
		return engine.NewError(engine.ErrIO, fmt.Sprintf("chown %s", path), err)
	}
	return nil
}

func lookupID(name string, resolve func(string) (string, error)) (int, error) {
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	s, err := resolve(name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}
