package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/starford/flashdeck/internal/apperr"
	"github.com/starford/flashdeck/internal/models"
)

const sniffSize = 512

// uploadSuffix marks a card that is still being written.
const uploadSuffix = ".upload"

// Local implements Provider over a directory tree. Folder ids are paths relative
// to the root and file ids are slash-separated relative file paths.
type Local struct {
	fs afero.Fs
}

// NewLocal creates a provider confined to root on the OS file system.
// The directory must already exist.
func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return NewLocalWithFS(afero.NewBasePathFs(afero.NewOsFs(), abs)), nil
}

// NewLocalWithFS creates a provider on an arbitrary afero file system.
func NewLocalWithFS(fs afero.Fs) *Local {
	return &Local{fs: fs}
}

// ListPage pages through the image files directly under folderID in name order.
// The page token is the offset of the first entry of the page.
func (l *Local) ListPage(_ context.Context, folderID, pageToken string, pageSize int) (*Page, error) {
	dir, err := cleanRel(folderID)
	if err != nil {
		return nil, err
	}
	offset := 0
	if pageToken != "" {
		offset, err = strconv.Atoi(pageToken)
		if err != nil || offset < 0 {
			return nil, fmt.Errorf("storage: bad page token %q", pageToken)
		}
	}

	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrFolderMissing, folderID)
		}
		return nil, fmt.Errorf("storage: read dir %s: %w", folderID, err)
	}

	var images []models.FileEntry
	for _, info := range infos {
		if info.IsDir() || strings.HasSuffix(info.Name(), uploadSuffix) {
			continue
		}
		id := path.Join(dir, info.Name())
		mt := l.mimeType(id)
		if !strings.HasPrefix(mt, "image/") {
			continue
		}
		images = append(images, models.FileEntry{ID: id, Name: info.Name(), MimeType: mt})
	}

	if offset > len(images) {
		offset = len(images)
	}
	end := offset + pageSize
	if pageSize <= 0 || end > len(images) {
		end = len(images)
	}
	page := &Page{Entries: images[offset:end]}
	if end < len(images) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

// Open opens the card file with the given id for reading.
func (l *Local) Open(id string) (afero.File, os.FileInfo, error) {
	rel, err := cleanRel(id)
	if err != nil || rel == "." {
		return nil, nil, fmt.Errorf("%w: card %s", apperr.ErrNotFound, id)
	}
	info, err := l.fs.Stat(rel)
	if err != nil || info.IsDir() {
		return nil, nil, fmt.Errorf("%w: card %s", apperr.ErrNotFound, id)
	}
	f, err := l.fs.Open(rel)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: open %s: %w", id, err)
	}
	return f, info, nil
}

// Write stores an uploaded image named name in folderID and returns its entry.
func (l *Local) Write(folderID, name string, r io.Reader) (models.FileEntry, error) {
	dir, err := cleanRel(folderID)
	if err != nil {
		return models.FileEntry{}, err
	}
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return models.FileEntry{}, fmt.Errorf("%w: file name %q", apperr.ErrInvalidInput, name)
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if !strings.HasPrefix(mt, "image/") {
		return models.FileEntry{}, fmt.Errorf("%w: %s is not an image", apperr.ErrInvalidInput, name)
	}
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return models.FileEntry{}, fmt.Errorf("storage: mkdir: %w", err)
	}

	id := path.Join(dir, name)
	tmp := id + uploadSuffix
	f, err := l.fs.Create(tmp)
	if err != nil {
		return models.FileEntry{}, fmt.Errorf("storage: create temp: %w", err)
	}
	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = l.fs.Remove(tmp)
		}
	}()
	if _, err := io.Copy(f, r); err != nil {
		return models.FileEntry{}, fmt.Errorf("storage: write temp: %w", err)
	}
	if err := f.Close(); err != nil {
		return models.FileEntry{}, fmt.Errorf("storage: close temp: %w", err)
	}
	if err := l.fs.Rename(tmp, id); err != nil {
		return models.FileEntry{}, fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return models.FileEntry{ID: id, Name: name, MimeType: mt}, nil
}

// mimeType guesses from the extension first and sniffs the content otherwise.
func (l *Local) mimeType(id string) string {
	if mt := mime.TypeByExtension(strings.ToLower(path.Ext(id))); mt != "" {
		return mt
	}
	f, err := l.fs.Open(id)
	if err != nil {
		return ""
	}
	defer f.Close()
	buf := make([]byte, sniffSize)
	n, _ := io.ReadFull(f, buf)
	return http.DetectContentType(buf[:n])
}

// cleanRel normalises a slash-separated relative path and rejects traversal.
func cleanRel(p string) (string, error) {
	p = strings.TrimPrefix(filepath.ToSlash(p), "/")
	cleaned := path.Clean("/" + p)[1:]
	if cleaned == "" {
		return ".", nil
	}
	if strings.Contains(p, "..") {
		return "", fmt.Errorf("%w: path escapes root: %s", apperr.ErrInvalidInput, p)
	}
	return cleaned, nil
}
