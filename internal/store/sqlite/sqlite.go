package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"studyplan/internal/apperr"
	appLog "studyplan/internal/log"
	"studyplan/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       BLOB NOT NULL,
	UNIQUE (collection, id)
);
CREATE TABLE IF NOT EXISTS record_indexes (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	name       TEXT NOT NULL,
	key        TEXT NOT NULL,
	PRIMARY KEY (collection, id, name)
);
CREATE INDEX IF NOT EXISTS idx_record_indexes_lookup
	ON record_indexes (collection, name, key);
`

// Store is a store.Backend persisted in a single SQLite file.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

var _ store.Backend = (*Store)(nil)

// Open opens (and if needed creates) the database at path and applies the
// schema. The parent directory is created with 0700.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, errors.Wrap(err, "sqlite: create dir")
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: open")
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite: apply schema")
	}

	s := &Store{db: db, log: appLog.Named("store.sqlite")}
	s.log.Info("sqlite store ready", zap.String("path", path))
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func writeIndexes(ctx context.Context, tx *sql.Tx, collection, id string, indexes map[string]string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM record_indexes WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return err
	}
	for name, key := range indexes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO record_indexes (collection, id, name, key) VALUES (?, ?, ?, ?)`,
			collection, id, name, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) Insert(ctx context.Context, collection string, doc store.Doc) (string, error) {
	id := uuid.NewString()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (collection, id, body) VALUES (?, ?, ?)`,
			collection, id, doc.Body); err != nil {
			return err
		}
		return writeIndexes(ctx, tx, collection, id, doc.Indexes)
	})
	if err != nil {
		s.log.Error("insert failed", zap.String("collection", collection), zap.Error(err))
		return "", err
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM records WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Doc{}, apperr.ErrNotFound
	}
	if err != nil {
		return store.Doc{}, err
	}
	return store.Doc{ID: id, Body: body}, nil
}

func (s *Store) Replace(ctx context.Context, collection, id string, doc store.Doc) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE records SET body = ? WHERE collection = ? AND id = ?`, doc.Body, collection, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.ErrNotFound
		}
		return writeIndexes(ctx, tx, collection, id, doc.Indexes)
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM record_indexes WHERE collection = ? AND id = ?`, collection, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM records WHERE collection = ? AND id = ?`, collection, id)
		return err
	})
}

func (s *Store) QueryByIndex(ctx context.Context, collection, index, key string) ([]store.Doc, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.body
		FROM records r
		JOIN record_indexes i ON i.collection = r.collection AND i.id = r.id
		WHERE i.collection = ? AND i.name = ? AND i.key = ?
		ORDER BY r.seq`, collection, index, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]store.Doc, 0)
	for rows.Next() {
		var doc store.Doc
		if err := rows.Scan(&doc.ID, &doc.Body); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}
