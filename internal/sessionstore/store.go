// Package sessionstore persists domain Memories by session name in a badger
// database. Values are snapshot encodings.
package sessionstore

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/domainkit/internal/domain"
	"github.com/danmuck/domainkit/internal/logging"
	"github.com/danmuck/domainkit/internal/snapshot"
	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

const keyPrefix = "memory/"

var ErrEmptySession = errors.New("sessionstore: empty session name")

type Config struct {
	Dir        string
	InMemory   bool
	SyncWrites bool
	Logger     *zerolog.Logger
}

// Store is safe for concurrent use. The Memories it returns are not.
type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Trace().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func OpenConfig(cfg Config) (*Store, error) {
	log := logging.New("sessionstore")
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("sessionstore: directory is required for a persistent store")
		}
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("sessionstore: create %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log: log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: open badger: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func Open(dir string) (*Store, error) {
	return OpenConfig(Config{Dir: dir, SyncWrites: true})
}

func OpenInMemory() (*Store, error) {
	return OpenConfig(Config{InMemory: true})
}

func key(session string) ([]byte, error) {
	if strings.TrimSpace(session) == "" {
		return nil, ErrEmptySession
	}
	return []byte(keyPrefix + session), nil
}

// Save replaces the stored memory of session.
func (s *Store) Save(session string, mem *domain.Memory) error {
	k, err := key(session)
	if err != nil {
		return err
	}
	if mem == nil {
		return domain.ErrInvalidPath
	}
	val := snapshot.Encode(mem)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, val)
	}); err != nil {
		return fmt.Errorf("sessionstore: save %s: %w", session, err)
	}
	s.log.Debug().Str("session", session).Int("entries", mem.Len()).Msg("memory saved")
	return nil
}

// Load returns the stored memory of session, or an empty one when the
// session has never been saved.
func (s *Store) Load(session string) (*domain.Memory, error) {
	k, err := key(session)
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return domain.NewMemory(), nil
	case err != nil:
		return nil, fmt.Errorf("sessionstore: load %s: %w", session, err)
	}
	mem, err := snapshot.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: load %s: %w", session, err)
	}
	return mem, nil
}

// Delete is a no-op for unknown sessions.
func (s *Store) Delete(session string) error {
	k, err := key(session)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	}); err != nil {
		return fmt.Errorf("sessionstore: delete %s: %w", session, err)
	}
	return nil
}

// Sessions lists stored session names in key order.
func (s *Store) Sessions() ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sessionstore: list: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
