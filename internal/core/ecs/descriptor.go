package ecs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document is the on-disk form of one resource instance.
type Document struct {
	Properties Fragment `json:"properties"`
}

// StoredDescriptor is a document together with the name it was saved under.
type StoredDescriptor struct {
	Name string
	Doc  Document
}

// DescriptorStore persists resource documents per kind.
type DescriptorStore interface {
	Save(ctx context.Context, kind, name string, doc Document) error
	Delete(ctx context.Context, kind, name string) error
	LoadAll(ctx context.Context, kind string) ([]StoredDescriptor, error)
}

// DirStore keeps one JSON file per instance. In nested mode each kind gets a
// subdirectory; in flat mode all files go straight into the directory and
// the extension tells kinds apart.
type DirStore struct {
	root string
	ext  string
	flat bool
}

// NewDirStore lays files out as root/<kind>/<name>.json.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root, ext: ".json"}
}

// NewFlatDirStore lays files out as dir/<name><ext>.
func NewFlatDirStore(dir, ext string) *DirStore {
	return &DirStore{root: dir, ext: ext, flat: true}
}

func (s *DirStore) dir(kind string) string {
	if s.flat {
		return s.root
	}
	return filepath.Join(s.root, fileSafe(kind))
}

func (s *DirStore) path(kind, name string) string {
	return filepath.Join(s.dir(kind), fileSafe(name)+s.ext)
}

func (s *DirStore) Save(_ context.Context, kind, name string, doc Document) error {
	dir := s.dir(kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s %q: %w", kind, name, err)
	}
	path := s.path(kind, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func (s *DirStore) Delete(_ context.Context, kind, name string) error {
	err := os.Remove(s.path(kind, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s %q: %w", kind, name, err)
	}
	return nil
}

// LoadAll reads every file with the store's extension, sorted by name. A
// missing directory yields no descriptors. The instance name is the base
// file name; a "name" property inside the document takes precedence.
func (s *DirStore) LoadAll(_ context.Context, kind string) ([]StoredDescriptor, error) {
	dir := s.dir(kind)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var out []StoredDescriptor
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), s.ext) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		name := fileName(strings.TrimSuffix(e.Name(), s.ext))
		if p, ok := doc.Properties[nameProperty]; ok {
			if v, err := decodeString(p.Value); err == nil && v != "" {
				name = v
			}
		}
		out = append(out, StoredDescriptor{Name: name, Doc: doc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// fileSafe percent-escapes characters that cannot appear in a file name, and
// '%' itself, so distinct names always map to distinct files.
func fileSafe(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c < 0x20, strings.IndexByte(`/\:*?"<>|%`, c) >= 0:
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// fileName reverses fileSafe. Names that do not decode are used verbatim.
func fileName(base string) string {
	name, err := url.PathUnescape(base)
	if err != nil {
		return base
	}
	return name
}
