package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_RoundTrip(t *testing.T) {
	var osfs OSFileSystem
	dir := filepath.Join(t.TempDir(), "plots", "run")
	if err := osfs.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	name := filepath.Join(dir, "trace.txt")
	w, err := osfs.Create(name)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("0,0,0\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := osfs.ReadFile(name)
	if err != nil || string(data) != "0,0,0\n" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
	if !osfs.Exists(name) {
		t.Error("expected file to exist")
	}
	if err := osfs.Remove(name); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if osfs.Exists(name) {
		t.Error("expected file to be gone")
	}
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	m := NewMemoryFileSystem()
	w, err := m.Create("/out/a.png")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w.Write([]byte("part1"))
	w.Write([]byte("part2"))

	data, _ := m.ReadFile("/out/a.png")
	if len(data) != 0 {
		t.Errorf("data before Close = %q, want empty", data)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err = m.ReadFile("/out//a.png")
	if err != nil || string(data) != "part1part2" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
}

func TestMemoryFileSystem_ReadIsCopy(t *testing.T) {
	m := NewMemoryFileSystem()
	w, _ := m.Create("f")
	w.Write([]byte("abc"))
	w.Close()

	data, _ := m.ReadFile("f")
	data[0] = 'x'
	again, _ := m.ReadFile("f")
	if string(again) != "abc" {
		t.Errorf("stored data mutated: %q", again)
	}
}

func TestMemoryFileSystem_MissingFile(t *testing.T) {
	m := NewMemoryFileSystem()
	if _, err := m.ReadFile("nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile err = %v, want ErrNotExist", err)
	}
	if err := m.Remove("nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Remove err = %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_Dirs(t *testing.T) {
	m := NewMemoryFileSystem()
	m.MkdirAll("a/b/c", 0755)
	for _, d := range []string{"a", "a/b", "a/b/c"} {
		if !m.Exists(d) {
			t.Errorf("expected %s to exist", d)
		}
	}

	w, _ := m.Create("a/b/file")
	w.Close()
	if err := m.Remove("a/b"); err == nil {
		t.Error("removing a non-empty directory should fail")
	}
	if err := m.Remove("a/b/c"); err != nil {
		t.Errorf("Remove empty dir: %v", err)
	}
	if m.Exists("a/b/c") {
		t.Error("a/b/c should be gone")
	}
}

func TestMemoryFileSystem_RemovedBeforeClose(t *testing.T) {
	m := NewMemoryFileSystem()
	w, _ := m.Create("tmp")
	w.Write([]byte("x"))
	m.Remove("tmp")
	w.Close()
	if m.Exists("tmp") {
		t.Error("closing a writer must not resurrect a removed file")
	}
}
