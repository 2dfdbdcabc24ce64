// Package store persists markov chains by name. SQLStore keeps snapshots
// in a SQL database, FileStore keeps one file per chain in a directory.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/CTAG07/chainwalk/pkg/markov"
)

var (
	// ErrChainNotFound is returned when no chain is stored under a name.
	ErrChainNotFound = errors.New("store: chain not found")
	// ErrInvalidName is returned for names that cannot be used as a key or file name.
	ErrInvalidName = errors.New("store: invalid chain name")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Info describes a stored chain without loading it.
type Info struct {
	Name      string
	Revision  string // Changes on every save; empty for FileStore.
	Order     int
	States    int
	Codec     string
	UpdatedAt time.Time
}

// Store is implemented by every chain backend.
type Store interface {
	Save(ctx context.Context, name string, c *markov.Chain) (Info, error)
	Load(ctx context.Context, name string, opts ...markov.Option) (*markov.Chain, error)
	Info(ctx context.Context, name string) (Info, error)
	List(ctx context.Context) ([]Info, error)
	Remove(ctx context.Context, name string) error
	Close() error
}

// ValidateName checks that name is safe to use as a row key and a file name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func notFound(name string) error {
	return fmt.Errorf("%w: %q", ErrChainNotFound, name)
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*FileStore)(nil)
)
