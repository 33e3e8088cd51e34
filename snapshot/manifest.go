package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/velox/blobstore"
	"github.com/hupe1980/velox/model"
)

const (
	// CurrentName is the pointer blob naming the latest snapshot.
	CurrentName = "CURRENT"
	// ManifestName is the manifest blob inside each snapshot.
	ManifestName = "MANIFEST.json"
	// FormatVersion is the manifest format written by Publish.
	FormatVersion = 1
)

// File kinds stored in a snapshot.
const (
	KindVectors = "vectors"
	KindIndex   = "index"
)

var (
	// ErrNoSnapshot is returned when CURRENT or the named snapshot does not exist.
	ErrNoSnapshot = errors.New("snapshot not found")
	// ErrChecksumMismatch is returned when fetched bytes fail verification.
	ErrChecksumMismatch = fmt.Errorf("%w: snapshot checksum mismatch", model.ErrCorruptFormat)
	// ErrIncompatibleVersion is returned for manifests written by a newer format.
	ErrIncompatibleVersion = fmt.Errorf("%w: incompatible manifest version", model.ErrCorruptFormat)
)

// Manifest describes one published snapshot.
type Manifest struct {
	Version   int        `json:"version"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	Dim       int        `json:"dim"`
	Count     int        `json:"count"`
	Clusters  int        `json:"clusters"`
	Metric    string     `json:"metric,omitempty"`
	Files     []FileInfo `json:"files"`
}

// FileInfo describes one blob of a snapshot.
type FileInfo struct {
	Kind        string      `json:"kind"`
	Blob        string      `json:"blob"`
	Size        int64       `json:"size"`
	StoredSize  int64       `json:"stored_size"`
	Compression Compression `json:"compression"`
	CRC32C      uint32      `json:"crc32c"`
}

// File returns the entry of the given kind.
func (m *Manifest) File(kind string) (FileInfo, bool) {
	for _, f := range m.Files {
		if f.Kind == kind {
			return f, true
		}
	}
	return FileInfo{}, false
}

func manifestBlob(name string) string {
	return path.Join(name, ManifestName)
}

func validateName(name string) error {
	if name == "" || name == CurrentName || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return model.Errorf(model.ErrInvalidArgument, "invalid snapshot name %q", name)
	}
	return nil
}

// Current returns the name CURRENT points to.
func Current(ctx context.Context, store blobstore.Store) (string, error) {
	data, err := blobstore.Get(ctx, store, CurrentName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return "", ErrNoSnapshot
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", CurrentName, err)
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", ErrNoSnapshot
	}
	return name, nil
}

// Load reads the manifest of the named snapshot. An empty name resolves CURRENT.
func Load(ctx context.Context, store blobstore.Store, name string) (*Manifest, error) {
	if name == "" {
		cur, err := Current(ctx, store)
		if err != nil {
			return nil, err
		}
		name = cur
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	data, err := blobstore.Get(ctx, store, manifestBlob(name))
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", name, err)
	}

	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, model.Errorf(model.ErrCorruptFormat, "manifest %s: %v", name, err)
	}
	if m.Version > FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrIncompatibleVersion, m.Version)
	}
	return m, nil
}

// List returns the manifests of all snapshots in store, oldest first.
// Unreadable manifests are skipped.
func List(ctx context.Context, store blobstore.Store) ([]*Manifest, error) {
	names, err := store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var out []*Manifest
	for _, n := range names {
		if path.Base(n) != ManifestName {
			continue
		}
		m, err := Load(ctx, store, path.Dir(n))
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes every blob of the named snapshot. The snapshot CURRENT
// points to cannot be deleted.
func Delete(ctx context.Context, store blobstore.Store, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	cur, err := Current(ctx, store)
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return err
	}
	if cur == name {
		return model.Errorf(model.ErrInvalidOperation, "snapshot %s is current", name)
	}

	blobs, err := store.List(ctx, name+"/")
	if err != nil {
		return err
	}
	if len(blobs) == 0 {
		return fmt.Errorf("%w: %s", ErrNoSnapshot, name)
	}
	// Manifest last, so an interrupted delete still lists as a snapshot.
	sort.SliceStable(blobs, func(i, j int) bool {
		return path.Base(blobs[j]) == ManifestName && path.Base(blobs[i]) != ManifestName
	})
	for _, b := range blobs {
		if err := store.Delete(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
