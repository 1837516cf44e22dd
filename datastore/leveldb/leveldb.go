// Package leveldb implements the envelope store on LevelDB.
package leveldb

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/syndtr/goleveldb/leveldb"
	lderrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"swarmnet/datastore"

	log "github.com/sirupsen/logrus"
)

const keyPrefixEnvelope = "ENV" // Envelope keyed by id

var _ datastore.Store = (*EnvelopeStore)(nil)

type EnvelopeStore struct {
	path string
	mu   sync.Mutex
	db   *leveldb.DB
}

func keyFromID(id string) []byte {
	return append([]byte(keyPrefixEnvelope), []byte(id)...)
}

func New(path string) (*EnvelopeStore, error) {
	opts := &opt.Options{
		Compression: opt.NoCompression,
	}

	// Open or create the DB; attempt recovery when corrupted.
	db, err := leveldb.OpenFile(path, opts)
	if lderrors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("datastore: open %s: %w", path, err)
	}

	log.Infof("Opened envelope store at %s", path)

	return &EnvelopeStore{path: path, db: db}, nil
}

func (s *EnvelopeStore) Save(id string, data []byte, encrypted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := cbor.Marshal(&datastore.Envelope{Data: data, Encrypted: encrypted})
	if err != nil {
		return fmt.Errorf("datastore: marshal %s: %w", id, err)
	}

	if err := s.db.Put(keyFromID(id), raw, nil); err != nil {
		return fmt.Errorf("datastore: save %s: %w", id, err)
	}
	return nil
}

func (s *EnvelopeStore) Load(id string) (*datastore.Envelope, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.db.Get(keyFromID(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("datastore: load %s: %w", id, err)
	}

	env := &datastore.Envelope{}
	if err := cbor.Unmarshal(raw, env); err != nil {
		return nil, false, fmt.Errorf("datastore: unmarshal %s: %w", id, err)
	}
	return env, true, nil
}

func (s *EnvelopeStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	iter := s.db.NewIterator(util.BytesPrefix([]byte(keyPrefixEnvelope)), nil)
	defer iter.Release()

	for iter.Next() {
		ids = append(ids, string(iter.Key()[len(keyPrefixEnvelope):]))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("datastore: enumerate: %w", err)
	}
	return ids, nil
}

func (s *EnvelopeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
