package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CTAG07/chainwalk/pkg/markov"
	"github.com/natefinch/atomic"
)

// FileStore keeps each chain in its own file under Dir, named after the
// chain with the codec's extension. Each file holds a Snapshot, so the
// order survives even for a chain without states. A WriteJSON export
// copied into Dir with a .json extension loads as well. Writes are atomic,
// so a reader never sees a partially written chain.
type FileStore struct {
	Dir   string
	Codec Codec // Defaults to JSONCodec.
}

func (s *FileStore) codec() Codec {
	if s.Codec == nil {
		return JSONCodec{}
	}
	return s.Codec
}

func (s *FileStore) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, name+s.codec().Ext()), nil
}

// Save writes c to its file, replacing any previous version.
func (s *FileStore) Save(_ context.Context, name string, c *markov.Chain) (Info, error) {
	path, err := s.path(name)
	if err != nil {
		return Info{}, err
	}
	snap := SnapshotOf(c)
	data, err := s.codec().Encode(snap)
	if err != nil {
		return Info{}, fmt.Errorf("could not encode chain %q: %w", name, err)
	}
	if err = os.MkdirAll(s.Dir, 0o755); err != nil {
		return Info{}, fmt.Errorf("could not create store directory: %w", err)
	}
	if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return Info{}, fmt.Errorf("could not write chain %q: %w", name, err)
	}
	return s.stat(name, path, snap)
}

// Load reads and decodes the chain stored under name. The stored order
// always wins over WithOrder in opts.
func (s *FileStore) Load(_ context.Context, name string, opts ...markov.Option) (*markov.Chain, error) {
	snap, err := s.read(name)
	if err != nil {
		return nil, err
	}
	c, err := snap.Chain(opts...)
	if err != nil {
		return nil, fmt.Errorf("chain %q: %w", name, err)
	}
	return c, nil
}

// Info decodes the chain file to report its order and state count.
func (s *FileStore) Info(_ context.Context, name string) (Info, error) {
	snap, err := s.read(name)
	if err != nil {
		return Info{}, err
	}
	path, _ := s.path(name)
	return s.stat(name, path, snap)
}

// List returns the metadata of every chain file in Dir, sorted by name.
// A missing directory holds no chains.
func (s *FileStore) List(ctx context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ext := s.codec().Ext()
	var infos []Info
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ext)
		if e.IsDir() || !ok || ValidateName(name) != nil {
			continue
		}
		info, err := s.Info(ctx, name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Remove deletes the file of the chain stored under name.
func (s *FileStore) Remove(_ context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err = os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(name)
		}
		return fmt.Errorf("could not remove chain %q: %w", name, err)
	}
	return nil
}

// Close is a no-op; FileStore holds no open resources.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) read(name string) (Snapshot, error) {
	path, err := s.path(name)
	if err != nil {
		return Snapshot{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, notFound(name)
		}
		return Snapshot{}, fmt.Errorf("could not read chain %q: %w", name, err)
	}
	snap, err := s.codec().Decode(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("chain %q: %w", name, err)
	}
	return snap, nil
}

func (s *FileStore) stat(name, path string, snap Snapshot) (Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Name:      name,
		Order:     snap.Order,
		States:    len(snap.Records),
		Codec:     s.codec().Name(),
		UpdatedAt: fi.ModTime().UTC(),
	}, nil
}
