// Package media manages the on-disk stimulus media library the remote
// display draws target images and movies from, and answers the mailbox's
// media-library commands (listFolders, listFiles, fileInfo, delete,
// upload — spec.md §"Remote display (C1)").
//
// Grounded on the teacher's archivefs package: a path abstraction that
// transparently lists into zip archives as though they were directories,
// reused here unmodified so a stimulus set can be shipped as a single
// zip file and browsed exactly like an unpacked folder.
package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cxlab/cxdriver/archivefs"
	"github.com/cxlab/cxdriver/cxerr"
)

// ListRequest/FileRequest/UploadRequest are the mailbox Request.Payload
// shapes for the CmdMediaListFolders/CmdMediaListFiles/CmdMediaFileInfo/
// CmdMediaDelete/CmdMediaUpload commands.
type ListRequest struct {
	Path string
}

type FileRequest struct {
	Path string
}

type UploadRequest struct {
	Path string
	Data []byte
}

// FileInfo describes one entry in the media library: a regular file, a
// folder, or the root of a zip archive (which archivefs also reports as
// a folder).
type FileInfo struct {
	Name    string
	IsDir   bool
	IsZip   bool
	Size    int64
	ModTime time.Time
}

// Library roots all media operations under a single directory, so
// mailbox-driven browsing can never escape it via "..".
type Library struct {
	root string
}

// NewLibrary returns a Library rooted at dir. dir must already exist.
func NewLibrary(dir string) (*Library, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, cxerr.FileIoError(fmt.Sprintf("media: %v", err))
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, cxerr.FileIoError(fmt.Sprintf("media: %v", err))
	}
	if !info.IsDir() {
		return nil, cxerr.FileIoError(fmt.Sprintf("media: %q is not a directory", abs))
	}
	return &Library{root: abs}, nil
}

// resolve joins rel onto the library root. rel is cleaned as though it
// were rooted at "/" first, so a "../../etc/passwd" style path can never
// walk above the library root: Clean collapses leading ".." components
// on an absolute path before Join ever sees them.
func (l *Library) resolve(rel string) string {
	return filepath.Join(l.root, filepath.Clean("/"+rel))
}

func (l *Library) list(rel string) ([]archivefs.Entry, error) {
	full := l.resolve(rel)

	var afs archivefs.Path
	if err := afs.Set(full, true); err != nil {
		return nil, cxerr.FileIoError(fmt.Sprintf("media: %v", err))
	}
	defer afs.Close()

	entries, err := afs.List()
	if err != nil {
		return nil, cxerr.FileIoError(fmt.Sprintf("media: %v", err))
	}
	return entries, nil
}

// ListFolders returns the subfolder names (including zip archive roots,
// which behave as folders) directly under rel.
func (l *Library) ListFolders(rel string) ([]string, error) {
	entries, err := l.list(rel)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir {
			out = append(out, e.Name)
		}
	}
	return out, nil
}

// ListFiles returns the non-folder entries directly under rel.
func (l *Library) ListFiles(rel string) ([]FileInfo, error) {
	entries, err := l.list(rel)
	if err != nil {
		return nil, err
	}
	var out []FileInfo
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		out = append(out, FileInfo{Name: e.Name})
	}
	return out, nil
}

// FileInfo stats a single file by path relative to the library root.
// Files inside a zip archive report a zero ModTime/Size, since
// archivefs does not expose zip member metadata beyond name and kind.
func (l *Library) FileInfo(rel string) (FileInfo, error) {
	full := l.resolve(rel)

	info, err := os.Stat(full)
	if err != nil {
		var afs archivefs.Path
		if aerr := afs.Set(full, false); aerr != nil || !afs.InArchive() {
			return FileInfo{}, cxerr.FileIoError(fmt.Sprintf("media: %v", err))
		}
		defer afs.Close()
		return FileInfo{Name: filepath.Base(full), IsDir: afs.IsDir()}, nil
	}

	isZip := !info.IsDir() && archivefs.TrimArchiveExt(full) != full
	return FileInfo{
		Name:    filepath.Base(full),
		IsDir:   info.IsDir(),
		IsZip:   isZip,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Delete removes a single file from the library. It refuses to delete
// folders, so a stray upload can't wipe out an entire stimulus set.
func (l *Library) Delete(rel string) error {
	full := l.resolve(rel)
	info, err := os.Stat(full)
	if err != nil {
		return cxerr.FileIoError(fmt.Sprintf("media: %v", err))
	}
	if info.IsDir() {
		return cxerr.FileIoError(fmt.Sprintf("media: refusing to delete folder %q", rel))
	}
	if err := os.Remove(full); err != nil {
		return cxerr.FileIoError(fmt.Sprintf("media: %v", err))
	}
	return nil
}

// Upload writes r to rel, creating any missing parent folders, and
// overwrites an existing file of the same name.
func (l *Library) Upload(rel string, r io.Reader) error {
	full := l.resolve(rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return cxerr.FileIoError(fmt.Sprintf("media: %v", err))
	}
	f, err := os.Create(full)
	if err != nil {
		return cxerr.FileIoError(fmt.Sprintf("media: %v", err))
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return cxerr.FileIoError(fmt.Sprintf("media: %v", err))
	}
	return nil
}
