package revision

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ksred/tienda-moves/internal/utils"
)

// Ext is the extension of revision files.
const Ext = ".yaml"

// Store is a directory of revision files.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore opens dir on fs, creating it when missing.
func NewStore(fs afero.Fs, dir string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, utils.WrapIOError("create directory", dir, err)
	}
	return &Store{fs: fs, dir: dir}, nil
}

// Dir returns the revision directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path for a revision id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+Ext)
}

// List returns every revision id in the directory in ascending order. The
// directory is re-read on each call.
func (s *Store) List() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, utils.WrapIOError("list", s.dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != Ext || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, Ext))
	}
	sort.Strings(ids)
	return ids, nil
}

// Exists reports whether a file for id is present.
func (s *Store) Exists(id string) (bool, error) {
	ok, err := afero.Exists(s.fs, s.Path(id))
	if err != nil {
		return false, utils.WrapIOError("stat", s.Path(id), err)
	}
	return ok, nil
}

// Read loads and validates a revision.
func (s *Store) Read(id string) (*Revision, error) {
	path := s.Path(id)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, utils.WrapNotFoundError("revision", id)
		}
		return nil, utils.WrapIOError("read", path, err)
	}

	var rev Revision
	if err := yaml.Unmarshal(data, &rev); err != nil {
		return nil, utils.InvalidFieldError(id, err.Error())
	}
	rev.ID = id
	if err := rev.Validate(); err != nil {
		return nil, fmt.Errorf("revision %s: %w", id, err)
	}
	return &rev, nil
}

// Write creates the file for rev. Existing files are never overwritten.
func (s *Store) Write(rev *Revision) error {
	if rev.ID == "" {
		return utils.RequiredFieldError("id")
	}
	if _, _, ok := ParseID(rev.ID); !ok {
		return utils.InvalidFieldError("id", fmt.Sprintf("malformed revision id %q", rev.ID))
	}

	path := s.Path(rev.ID)
	exists, err := s.Exists(rev.ID)
	if err != nil {
		return err
	}
	if exists {
		return utils.WrapConflictError("revision", "id", rev.ID)
	}

	data, err := Encode(rev)
	if err != nil {
		return err
	}

	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return utils.WrapConflictError("revision", "id", rev.ID)
		}
		return utils.WrapIOError("create", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return utils.WrapIOError("write", path, err)
	}
	if err := f.Close(); err != nil {
		return utils.WrapIOError("close", path, err)
	}
	return nil
}

// Remove deletes the file for id.
func (s *Store) Remove(id string) error {
	path := s.Path(id)
	if err := s.fs.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return utils.WrapNotFoundError("revision", id)
		}
		return utils.WrapIOError("remove", path, err)
	}
	return nil
}

// Encode renders a revision file: a comment header followed by the YAML body.
func Encode(rev *Revision) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n#\n# date created: %s\n", rev.Name, rev.CreatedAt.Format("2006-01-02 15:04:05.000000"))

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(rev); err != nil {
		return nil, utils.InvalidFieldError(rev.ID, err.Error())
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NextID returns the id prefix following the highest numeric prefix in existing.
func NextID(existing []string) (string, error) {
	highest := 0
	for _, id := range existing {
		n, _, ok := ParseID(id)
		if !ok {
			return "", utils.InvalidFieldError("id", fmt.Sprintf("revision %q has no numeric prefix", id))
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%04d", highest+1), nil
}

// ParseID splits "0003_add_stock" into 3 and "add_stock".
func ParseID(id string) (int, string, bool) {
	prefix, slug, _ := strings.Cut(id, "_")
	if prefix == "" {
		return 0, "", false
	}
	n, err := strconv.Atoi(prefix)
	if err != nil || n < 0 {
		return 0, "", false
	}
	return n, slug, true
}

// Slug normalizes a revision name for use in its id.
func Slug(name string) (string, error) {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	if slug == "" {
		return "", utils.RequiredFieldError("name")
	}
	if strings.ContainsAny(slug, `/\`) {
		return "", utils.InvalidFieldError("name", fmt.Sprintf("%q contains a path separator", name))
	}
	return slug, nil
}

// NewID builds the id of the next revision called name.
func NewID(existing []string, name string) (string, error) {
	prefix, err := NextID(existing)
	if err != nil {
		return "", err
	}
	slug, err := Slug(name)
	if err != nil {
		return "", err
	}
	return prefix + "_" + slug, nil
}
