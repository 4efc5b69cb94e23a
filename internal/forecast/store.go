package forecast

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/couchcryptid/air-quality-service/internal/domain"
)

// ErrModelNotFound is returned by a ModelStore when no model exists for a city.
var ErrModelNotFound = errors.New("model not found")

// ModelStore persists trained models keyed by city key.
type ModelStore interface {
	Load(ctx context.Context, cityKey string) (*Model, error)
	Save(ctx context.Context, m *Model) error
}

// FileStore keeps one msgpack file per city under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the model directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file used for a city key. The key is normalized again so
// the path never leaves the store directory.
func (s *FileStore) Path(cityKey string) string {
	return filepath.Join(s.dir, "aqi_model_"+domain.CityKey(cityKey)+".msgpack")
}

// Load reads the model for a city key.
func (s *FileStore) Load(_ context.Context, cityKey string) (*Model, error) {
	f, err := os.Open(s.Path(cityKey))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", cityKey, err)
	}
	defer f.Close()

	var m Model
	if err := msgpack.NewDecoder(bufio.NewReader(f)).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", cityKey, err)
	}
	if m.Version != modelVersion {
		return nil, fmt.Errorf("model %s: unsupported version %d", cityKey, m.Version)
	}
	return &m, nil
}

// Save writes the model to a temp file in the same directory and renames it
// into place, so readers never observe a partial file.
func (s *FileStore) Save(_ context.Context, m *Model) error {
	tmp, err := os.CreateTemp(s.dir, "aqi_model_"+domain.CityKey(m.CityKey)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	w := bufio.NewWriter(tmp)
	if err := msgpack.NewEncoder(w).Encode(m); err != nil {
		tmp.Close()
		return fmt.Errorf("encode model %s: %w", m.CityKey, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write model %s: %w", m.CityKey, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync model %s: %w", m.CityKey, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model %s: %w", m.CityKey, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(m.CityKey)); err != nil {
		return fmt.Errorf("rename model %s: %w", m.CityKey, err)
	}
	return nil
}
