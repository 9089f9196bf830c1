// Package flatfile stores the item sequence as a tab separated text file,
// one record per line: guid, status, title, link, description.
package flatfile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"feed-relay/internal/domain/entity"
	"feed-relay/internal/repository"
	"feed-relay/internal/utils/text"
)

const (
	fieldSep  = "\t"
	numFields = 5

	// maxLineBytes bounds a single record; feed descriptions can be long.
	maxLineBytes = 1 << 20
)

// ParseError reports a malformed record in the store file.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Backend persists items to a single file. Every Save rewrites the file via
// a temporary sibling that is fsynced and renamed into place.
type Backend struct {
	path string
	perm os.FileMode
}

var _ repository.SnapshotBackend = (*Backend)(nil)

// New returns a Backend writing to path.
func New(path string) *Backend {
	return &Backend{path: path, perm: 0o644}
}

// Path returns the file the backend writes.
func (b *Backend) Path() string { return b.path }

// Load reads every record. A missing file yields an empty sequence.
func (b *Backend) Load(ctx context.Context) ([]*entity.Item, error) {
	f, err := os.Open(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return []*entity.Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Load: Open: %w", err)
	}
	defer func() { _ = f.Close() }()

	items, err := b.decode(ctx, f)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (b *Backend) decode(ctx context.Context, r io.Reader) ([]*entity.Item, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	items := make([]*entity.Item, 0, 64)
	line := 0
	for sc.Scan() {
		line++
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := sc.Text()
		if raw == "" {
			continue
		}
		item, err := parseRecord(raw)
		if err != nil {
			return nil, &ParseError{Path: b.path, Line: line, Err: err}
		}
		items = append(items, item)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("Load: Scan: %w", err)
	}
	return items, nil
}

func parseRecord(raw string) (*entity.Item, error) {
	fields := strings.Split(raw, fieldSep)
	if len(fields) != numFields {
		return nil, fmt.Errorf("expected %d fields, got %d", numFields, len(fields))
	}
	status, err := entity.ParseStatus(fields[1])
	if err != nil {
		return nil, err
	}
	if fields[0] == "" {
		return nil, errors.New("empty guid")
	}
	return &entity.Item{
		GUID:        fields[0],
		Status:      status,
		Title:       fields[2],
		Link:        fields[3],
		Description: fields[4],
	}, nil
}

// Save replaces the file contents with items.
func (b *Backend) Save(ctx context.Context, items []*entity.Item) error {
	var buf bytes.Buffer
	for _, item := range items {
		writeRecord(&buf, item)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeFileAtomic(b.path, buf.Bytes(), b.perm); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

func writeRecord(buf *bytes.Buffer, item *entity.Item) {
	buf.WriteString(text.SingleLine(item.GUID))
	buf.WriteString(fieldSep)
	fmt.Fprintf(buf, "%d", int(item.Status))
	buf.WriteString(fieldSep)
	buf.WriteString(text.SingleLine(item.Title))
	buf.WriteString(fieldSep)
	buf.WriteString(text.SingleLine(item.Link))
	buf.WriteString(fieldSep)
	buf.WriteString(text.SingleLine(item.Description))
	buf.WriteByte('\n')
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	return d.Sync()
}
