package fileutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.json")
	dst := filepath.Join(dir, "dst.json")

	content := []byte(`{"data-root":"/var/lib/docker"}`)
	if err := os.WriteFile(src, content, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected source permissions, got %o", info.Mode().Perm())
	}
}

func TestCopyFileVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(filepath.Join(dir, "nonexistent"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)

	target, err := Backup(path, now)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if target != path+".bak-20260504T030201Z" {
		t.Fatalf("unexpected backup name %q", target)
	}
	if got, _ := os.ReadFile(target); string(got) != "{}" {
		t.Fatalf("backup content mismatch: %q", got)
	}

	missing, err := Backup(filepath.Join(dir, "absent.json"), now)
	if err != nil || missing != "" {
		t.Fatalf("expected no-op for missing file, got %q %v", missing, err)
	}
}

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "etc", "config.toml")

	if err := WriteFileAtomic(path, []byte("root = \"/a\"\n"), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("root = \"/b\"\n"), 0o640); err != nil {
		t.Fatalf("second write: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "root = \"/b\"\n" {
		t.Fatalf("unexpected content %q", got)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Fatalf("temporary file left behind: %s", entry.Name())
		}
	}
}

func TestDirSize(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "a", "b"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "one"), make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a", "b", "two"), make([]byte, 250), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "one"), filepath.Join(root, "link")); err != nil {
		t.Fatal(err)
	}

	size, err := DirSize(context.Background(), root)
	if err != nil {
		t.Fatalf("DirSize: %v", err)
	}
	if size != 350 {
		t.Fatalf("expected 350 bytes, got %d", size)
	}

	missing, err := DirSize(context.Background(), filepath.Join(root, "absent"))
	if err != nil || missing != 0 {
		t.Fatalf("expected zero for missing root, got %d %v", missing, err)
	}
}

func TestDirSizeHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "f"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := DirSize(ctx, root); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestFreeBytesUsesExistingAncestor(t *testing.T) {
	root := t.TempDir()
	free, err := FreeBytes(filepath.Join(root, "not", "yet", "created"))
	if err != nil {
		t.Fatalf("FreeBytes: %v", err)
	}
	if free == 0 {
		t.Fatal("expected some free space on the temp filesystem")
	}
	nearest, err := NearestExisting(filepath.Join(root, "not", "yet"))
	if err != nil || nearest != root {
		t.Fatalf("expected %s, got %s %v", root, nearest, err)
	}
}

func TestVolumeOfGroupsSameFilesystem(t *testing.T) {
	root := t.TempDir()
	a, err := VolumeOf(filepath.Join(root, "a", "missing"))
	if err != nil {
		t.Fatalf("VolumeOf: %v", err)
	}
	b, err := VolumeOf(root)
	if err != nil {
		t.Fatalf("VolumeOf: %v", err)
	}
	if a.Device != b.Device {
		t.Fatalf("expected same device, got %d and %d", a.Device, b.Device)
	}
	if a.Path != root {
		t.Fatalf("expected probe at %s, got %s", root, a.Path)
	}
}

func TestSymlinkTo(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "new")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "old")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	ok, err := SymlinkTo(link, target)
	if err != nil || !ok {
		t.Fatalf("expected link to resolve to target, got %v %v", ok, err)
	}
	ok, err = SymlinkTo(target, target)
	if err != nil || ok {
		t.Fatalf("a real directory is not a symlink, got %v %v", ok, err)
	}
	ok, err = SymlinkTo(filepath.Join(root, "absent"), target)
	if err != nil || ok {
		t.Fatalf("missing path is not a symlink, got %v %v", ok, err)
	}
	if !SamePath(link, target) {
		t.Fatal("expected SamePath to resolve the link")
	}
}

func TestMirrorDirectory(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	if err := os.Mkdir(src, 0o711); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(src, 0o711); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(root, "mnt", "dst")
	if err := MirrorDirectory(src, dst); err != nil {
		t.Fatalf("MirrorDirectory: %v", err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o711 {
		t.Fatalf("expected mode 0711, got %o", info.Mode().Perm())
	}
}

func TestCopiedBytesCountsOnlyMatchingFiles(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	write := func(path string, size int) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(src, "a", "full.bin"), 100)
	write(filepath.Join(src, "a", "partial.bin"), 100)
	write(filepath.Join(src, "missing.bin"), 100)
	write(filepath.Join(dst, "a", "full.bin"), 100)
	write(filepath.Join(dst, "a", "partial.bin"), 40)
	write(filepath.Join(dst, "lost+found", "junk.bin"), 1000)

	got, err := CopiedBytes(context.Background(), src, dst)
	if err != nil {
		t.Fatalf("CopiedBytes: %v", err)
	}
	if got != 140 {
		t.Fatalf("expected 140 bytes already copied, got %d", got)
	}

	if got, err := CopiedBytes(context.Background(), src, filepath.Join(root, "absent")); err != nil || got != 0 {
		t.Fatalf("missing destination should count zero, got %d (%v)", got, err)
	}
}
