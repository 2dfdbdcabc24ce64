package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/CTAG07/chainwalk/pkg/markov"
	"github.com/google/uuid"
)

// SetupSchema initializes the snapshot table in the provided database. It is
// idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const schemaSnapshots = `
CREATE TABLE IF NOT EXISTS markov_chain_snapshots (
    chain_name TEXT PRIMARY KEY,
    revision TEXT NOT NULL,
    chain_order INTEGER NOT NULL,
    state_count INTEGER NOT NULL,
    codec TEXT NOT NULL,
    data BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);
`
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaSnapshots); err != nil {
		return fmt.Errorf("could not create schema: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// SQLStore keeps one encoded snapshot per chain name. Snapshots are written
// with the store's codec and read back with whichever codec wrote them.
type SQLStore struct {
	db         *sql.DB
	codec      Codec
	stmtSave   *sql.Stmt
	stmtLoad   *sql.Stmt
	stmtInfo   *sql.Stmt
	stmtList   *sql.Stmt
	stmtRemove *sql.Stmt
	logger     *slog.Logger
}

// NewSQLStore pre-compiles the statements of the store. SetupSchema must
// have been called on db. A nil codec defaults to JSONCodec.
func NewSQLStore(db *sql.DB, codec Codec) (*SQLStore, error) {
	if codec == nil {
		codec = JSONCodec{}
	}

	stmtSave, err := db.Prepare(`
INSERT INTO markov_chain_snapshots (chain_name, revision, chain_order, state_count, codec, data, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(chain_name) DO UPDATE SET
    revision = excluded.revision,
    chain_order = excluded.chain_order,
    state_count = excluded.state_count,
    codec = excluded.codec,
    data = excluded.data,
    updated_at = excluded.updated_at;`)
	if err != nil {
		return nil, err
	}

	stmtLoad, err := db.Prepare(`SELECT chain_order, codec, data FROM markov_chain_snapshots WHERE chain_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtInfo, err := db.Prepare(`SELECT chain_name, revision, chain_order, state_count, codec, updated_at FROM markov_chain_snapshots WHERE chain_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtList, err := db.Prepare(`SELECT chain_name, revision, chain_order, state_count, codec, updated_at FROM markov_chain_snapshots ORDER BY chain_name;`)
	if err != nil {
		return nil, err
	}

	stmtRemove, err := db.Prepare(`DELETE FROM markov_chain_snapshots WHERE chain_name = ?;`)
	if err != nil {
		return nil, err
	}

	return &SQLStore{
		db:         db,
		codec:      codec,
		stmtSave:   stmtSave,
		stmtLoad:   stmtLoad,
		stmtInfo:   stmtInfo,
		stmtList:   stmtList,
		stmtRemove: stmtRemove,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements. The database itself is left open.
func (s *SQLStore) Close() error {
	return errors.Join(
		s.stmtSave.Close(),
		s.stmtLoad.Close(),
		s.stmtInfo.Close(),
		s.stmtList.Close(),
		s.stmtRemove.Close(),
	)
}

// SetLogger sets the logger for the store. By default, all logs are discarded.
func (s *SQLStore) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Save writes a snapshot of c under name, replacing any previous one.
func (s *SQLStore) Save(ctx context.Context, name string, c *markov.Chain) (Info, error) {
	if err := ValidateName(name); err != nil {
		return Info{}, err
	}
	snap := SnapshotOf(c)
	data, err := s.codec.Encode(snap)
	if err != nil {
		return Info{}, fmt.Errorf("could not encode chain %q: %w", name, err)
	}

	info := Info{
		Name:      name,
		Revision:  uuid.NewString(),
		Order:     snap.Order,
		States:    len(snap.Records),
		Codec:     s.codec.Name(),
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err = s.stmtSave.ExecContext(ctx, info.Name, info.Revision, info.Order, info.States,
		info.Codec, data, info.UpdatedAt.UnixMilli()); err != nil {
		return Info{}, fmt.Errorf("could not save chain %q: %w", name, err)
	}

	s.logger.InfoContext(ctx, "Chain saved",
		slog.String("chain_name", name),
		slog.String("revision", info.Revision),
		slog.Int("states", info.States),
		slog.Int("bytes", len(data)),
	)
	return info, nil
}

// Load decodes the chain stored under name. Options are passed to
// markov.Import; the stored order always wins over WithOrder.
func (s *SQLStore) Load(ctx context.Context, name string, opts ...markov.Option) (*markov.Chain, error) {
	var (
		order     int
		codecName string
		data      []byte
	)
	err := s.stmtLoad.QueryRowContext(ctx, name).Scan(&order, &codecName, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load chain %q: %w", name, err)
	}

	codec, err := CodecByName(codecName)
	if err != nil {
		return nil, err
	}
	snap, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("chain %q: %w", name, err)
	}
	snap.Order = order
	c, err := snap.Chain(opts...)
	if err != nil {
		return nil, fmt.Errorf("chain %q: %w", name, err)
	}

	s.logger.DebugContext(ctx, "Chain loaded",
		slog.String("chain_name", name),
		slog.String("codec", codecName),
		slog.Int("states", len(snap.Records)),
	)
	return c, nil
}

// Info returns the metadata of the chain stored under name.
func (s *SQLStore) Info(ctx context.Context, name string) (Info, error) {
	info, err := scanInfo(s.stmtInfo.QueryRowContext(ctx, name))
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, notFound(name)
	}
	return info, err
}

// List returns the metadata of every stored chain, sorted by name.
func (s *SQLStore) List(ctx context.Context) ([]Info, error) {
	rows, err := s.stmtList.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var infos []Info
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return infos, nil
}

// Remove deletes the chain stored under name.
func (s *SQLStore) Remove(ctx context.Context, name string) error {
	res, err := s.stmtRemove.ExecContext(ctx, name)
	if err != nil {
		return fmt.Errorf("could not remove chain %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(name)
	}
	s.logger.InfoContext(ctx, "Chain removed", slog.String("chain_name", name))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInfo(row rowScanner) (Info, error) {
	var (
		info      Info
		updatedAt int64
	)
	if err := row.Scan(&info.Name, &info.Revision, &info.Order, &info.States, &info.Codec, &updatedAt); err != nil {
		return Info{}, err
	}
	info.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return info, nil
}
