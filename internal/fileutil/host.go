package fileutil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DirSize returns the apparent size in bytes of regular files under root.
// Symlinks are not followed. A missing root has size zero.
func DirSize(ctx context.Context, root string) (int64, error) {
	if _, err := os.Lstat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat %s: %w", root, err)
	}
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Entries removed while walking are not an error.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("measure %s: %w", root, err)
	}
	return total, nil
}

// CopiedBytes estimates how much of the tree at src is already present at
// dst. Only regular files that exist at the same relative path on both sides
// count, each contributing the smaller of its two sizes. Unrelated files at
// dst are ignored. A missing src or dst yields zero.
func CopiedBytes(ctx context.Context, src, dst string) (int64, error) {
	for _, root := range []string{src, dst} {
		if _, err := os.Lstat(root); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return 0, nil
			}
			return 0, fmt.Errorf("stat %s: %w", root, err)
		}
	}
	var total int64
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		there, err := os.Lstat(filepath.Join(dst, rel))
		if err != nil || !there.Mode().IsRegular() {
			return nil
		}
		here, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		total += min(here.Size(), there.Size())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("compare %s with %s: %w", src, dst, err)
	}
	return total, nil
}

// FreeBytes reports the bytes available to unprivileged writers on the
// filesystem that holds path, or would hold it once created.
func FreeBytes(path string) (uint64, error) {
	existing, err := NearestExisting(path)
	if err != nil {
		return 0, err
	}
	var st unix.Statfs_t
	if err := unix.Statfs(existing, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", existing, err)
	}
	return st.Bavail * uint64(st.Bsize), nil //nolint:gosec
}

// Volume identifies the filesystem that holds path, or would hold it once
// created, and its available space.
type Volume struct {
	Device uint64
	Free   uint64
	Path   string
}

// VolumeOf reports the filesystem of the nearest existing ancestor of path.
func VolumeOf(path string) (Volume, error) {
	existing, err := NearestExisting(path)
	if err != nil {
		return Volume{}, err
	}
	var st unix.Stat_t
	if err := unix.Stat(existing, &st); err != nil {
		return Volume{}, fmt.Errorf("stat %s: %w", existing, err)
	}
	free, err := FreeBytes(existing)
	if err != nil {
		return Volume{}, err
	}
	return Volume{Device: uint64(st.Dev), Free: free, Path: existing}, nil //nolint:gosec
}

// NearestExisting walks up from path until it finds an existing entry.
func NearestExisting(path string) (string, error) {
	current := filepath.Clean(path)
	for {
		if _, err := os.Stat(current); err == nil {
			return current, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", current, err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		current = parent
	}
}

// SamePath reports whether a and b name the same location once symlinks are
// resolved. Paths that do not exist are compared lexically.
func SamePath(a, b string) bool {
	return canonical(a) == canonical(b)
}

func canonical(path string) string {
	cleaned := filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(cleaned); err == nil {
		return resolved
	}
	return cleaned
}

// SymlinkTo reports whether link is a symbolic link that resolves to target.
func SymlinkTo(link, target string) (bool, error) {
	info, err := os.Lstat(link)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("lstat %s: %w", link, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return false, nil
	}
	resolved, err := filepath.EvalSymlinks(link)
	if err != nil {
		// Dangling link.
		return false, nil
	}
	return resolved == canonical(target), nil
}

// MirrorDirectory creates dst when missing and gives it src's permission
// bits and ownership.
func MirrorDirectory(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod %s: %w", dst, err)
	}
	return matchOwner(src, dst)
}

func matchOwner(src, dst string) error {
	var st unix.Stat_t
	if err := unix.Stat(src, &st); err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if err := unix.Lchown(dst, int(st.Uid), int(st.Gid)); err != nil {
		// Unprivileged callers can only keep their own ownership.
		if errors.Is(err, unix.EPERM) && unix.Geteuid() != 0 {
			return nil
		}
		return fmt.Errorf("chown %s: %w", dst, err)
	}
	return nil
}
