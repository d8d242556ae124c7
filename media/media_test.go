package media

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "targets"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "targets", "dot.png"), []byte("fake-png"), 0o644); err != nil {
		t.Fatal(err)
	}
	lib, err := NewLibrary(dir)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	return lib
}

func TestListFoldersFindsSubdirectory(t *testing.T) {
	lib := newTestLibrary(t)
	folders, err := lib.ListFolders("")
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if len(folders) != 1 || folders[0] != "targets" {
		t.Fatalf("expected [targets], got %v", folders)
	}
}

func TestListFilesFindsFileInSubdirectory(t *testing.T) {
	lib := newTestLibrary(t)
	files, err := lib.ListFiles("targets")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 || files[0].Name != "dot.png" {
		t.Fatalf("expected [dot.png], got %v", files)
	}
}

func TestFileInfoReportsSize(t *testing.T) {
	lib := newTestLibrary(t)
	info, err := lib.FileInfo(filepath.Join("targets", "dot.png"))
	if err != nil {
		t.Fatalf("FileInfo: %v", err)
	}
	if info.Size != int64(len("fake-png")) {
		t.Fatalf("expected size %d, got %d", len("fake-png"), info.Size)
	}
}

func TestResolveConfinesEscapingPathToRoot(t *testing.T) {
	lib := newTestLibrary(t)
	full := lib.resolve("../../etc/passwd")
	want := filepath.Join(lib.root, "etc", "passwd")
	if full != want {
		t.Fatalf("expected escaping path to resolve under the library root as %q, got %q", want, full)
	}
}

func TestUploadThenDeleteRoundTrips(t *testing.T) {
	lib := newTestLibrary(t)
	if err := lib.Upload(filepath.Join("targets", "new.png"), bytes.NewBufferString("new-data")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	info, err := lib.FileInfo(filepath.Join("targets", "new.png"))
	if err != nil {
		t.Fatalf("FileInfo after upload: %v", err)
	}
	if info.Size != int64(len("new-data")) {
		t.Fatalf("unexpected uploaded size %d", info.Size)
	}
	if err := lib.Delete(filepath.Join("targets", "new.png")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := lib.FileInfo(filepath.Join("targets", "new.png")); err == nil {
		t.Fatal("expected FileInfo to fail after delete")
	}
}

func TestDeleteRefusesFolder(t *testing.T) {
	lib := newTestLibrary(t)
	if err := lib.Delete("targets"); err == nil {
		t.Fatal("expected Delete to refuse a folder")
	}
}
