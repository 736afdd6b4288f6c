package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"testing"
)

func TestMemoryFileSystemReadWrite(t *testing.T) {
	m := NewMemoryFileSystem()

	if err := m.WriteFile("/data/a.csv", []byte("No,Lat,Lon\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := m.ReadFile("/data/a.csv")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "No,Lat,Lon\n" {
		t.Errorf("content = %q", data)
	}

	if !m.Exists("/data/a.csv") {
		t.Error("Exists = false for written file")
	}
	if m.Exists("/data/b.csv") {
		t.Error("Exists = true for missing file")
	}
}

func TestMemoryFileSystemOpenMissing(t *testing.T) {
	m := NewMemoryFileSystem()
	_, err := m.Open("/nope")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error = %v, want fs.ErrNotExist", err)
	}
}

func TestMemoryFileSystemCreateAndClose(t *testing.T) {
	m := NewMemoryFileSystem()

	w, err := m.Create("/out/report.csv")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := m.Open("/out/report.csv")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q, want hello", data)
	}
}

func TestMemoryFileSystemReadDir(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.WriteFile("/nc/b_20100201.nc", nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteFile("/nc/a_20100101.nc", nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := m.MkdirAll("/nc/results", 0755); err != nil {
		t.Fatal(err)
	}

	entries, err := m.ReadDir("/nc")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	// Sorted by name.
	if entries[0].Name() != "a_20100101.nc" || entries[1].Name() != "b_20100201.nc" {
		t.Errorf("unexpected order: %v, %v", entries[0].Name(), entries[1].Name())
	}
	if !entries[2].IsDir() {
		t.Error("results entry should be a directory")
	}

	if _, err := m.ReadDir("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadDir missing dir error = %v, want fs.ErrNotExist", err)
	}
}

func TestMemoryFileSystemRemove(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.WriteFile("/x/y", []byte("1"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := m.Remove("/x/y"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if m.Exists("/x/y") {
		t.Error("file still exists after Remove")
	}
	if err := m.Remove("/x/y"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("second Remove error = %v, want fs.ErrNotExist", err)
	}
}

func TestMkdirAllCreatesParents(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.MkdirAll("/a/b/c", 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, dir := range []string{"/a", "/a/b", "/a/b/c"} {
		info, err := m.Stat(dir)
		if err != nil {
			t.Fatalf("Stat(%s): %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}
