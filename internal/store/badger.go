package store

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"example.com/retailpos/terminal/config"
	"example.com/retailpos/terminal/internal/models"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
)

// Collection key prefixes. Queue keys encode the action id big-endian so
// Badger's byte-ordered iteration yields FIFO order.
var (
	prefixProducts = []byte("products/")
	prefixClients  = []byte("clients/")
	prefixPending  = []byte("pending/")
	prefixQueue    = []byte("queue/")
	keyQueueSeq    = []byte("seq/queue")
)

// BadgerStore is the Badger-backed implementation of Store
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

// NewBadgerStore opens (or creates) the local store at the configured path
func NewBadgerStore(cfg config.StoreConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open local store")
	}

	seq, err := db.GetSequence(keyQueueSeq, 64)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to open queue sequence")
	}

	return &BadgerStore{db: db, seq: seq}, nil
}

// Close releases the queue sequence and closes the underlying database
func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return errors.Wrap(err, "failed to release queue sequence")
	}
	return s.db.Close()
}

func productKey(id int64) []byte {
	return appendUint64(prefixProducts, uint64(id))
}

func clientKey(id int64) []byte {
	return appendUint64(prefixClients, uint64(id))
}

func pendingKey(tempID string) []byte {
	return append(append([]byte(nil), prefixPending...), tempID...)
}

func queueKey(id uint64) []byte {
	return appendUint64(prefixQueue, id)
}

func appendUint64(prefix []byte, v uint64) []byte {
	key := make([]byte, len(prefix), len(prefix)+8)
	copy(key, prefix)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(key, buf[:]...)
}

// PutProducts overwrites the cached records for the given products
func (s *BadgerStore) PutProducts(ctx context.Context, products []models.Product) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, p := range products {
		data, err := json.Marshal(p)
		if err != nil {
			return errors.Wrap(err, "failed to marshal product")
		}
		if err := wb.Set(productKey(p.ID), data); err != nil {
			return errors.Wrap(err, "failed to write product")
		}
	}
	return errors.Wrap(wb.Flush(), "failed to flush product batch")
}

// GetProduct returns the cached product record, or ErrNotFound
func (s *BadgerStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.get(productKey(id), &product)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts returns every cached product
func (s *BadgerStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.scan(prefixProducts, func(v []byte) error {
		var p models.Product
		if err := json.Unmarshal(v, &p); err != nil {
			return errors.Wrap(err, "failed to unmarshal product")
		}
		products = append(products, p)
		return nil
	})
	return products, err
}

// PutClients overwrites the cached records for the given clients
func (s *BadgerStore) PutClients(ctx context.Context, clients []models.Client) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, c := range clients {
		data, err := json.Marshal(c)
		if err != nil {
			return errors.Wrap(err, "failed to marshal client")
		}
		if err := wb.Set(clientKey(c.ID), data); err != nil {
			return errors.Wrap(err, "failed to write client")
		}
	}
	return errors.Wrap(wb.Flush(), "failed to flush client batch")
}

// ListClients returns every cached client
func (s *BadgerStore) ListClients(ctx context.Context) ([]models.Client, error) {
	var clients []models.Client
	err := s.scan(prefixClients, func(v []byte) error {
		var c models.Client
		if err := json.Unmarshal(v, &c); err != nil {
			return errors.Wrap(err, "failed to unmarshal client")
		}
		clients = append(clients, c)
		return nil
	})
	return clients, err
}

// PutPendingSale persists an offline sale keyed by its tempId
func (s *BadgerStore) PutPendingSale(ctx context.Context, sale *models.OfflineSale) error {
	data, err := json.Marshal(sale)
	if err != nil {
		return errors.Wrap(err, "failed to marshal pending sale")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pendingKey(sale.TempID), data)
	})
	return errors.Wrap(err, "failed to write pending sale")
}

// GetPendingSale returns the pending sale for the tempId, or ErrNotFound
func (s *BadgerStore) GetPendingSale(ctx context.Context, tempID string) (*models.OfflineSale, error) {
	var sale models.OfflineSale
	err := s.get(pendingKey(tempID), &sale)
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// ListPendingSales returns every pending sale, synced or not
func (s *BadgerStore) ListPendingSales(ctx context.Context) ([]models.OfflineSale, error) {
	var sales []models.OfflineSale
	err := s.scan(prefixPending, func(v []byte) error {
		var sale models.OfflineSale
		if err := json.Unmarshal(v, &sale); err != nil {
			return errors.Wrap(err, "failed to unmarshal pending sale")
		}
		sales = append(sales, sale)
		return nil
	})
	return sales, err
}

// DeletePendingSale removes the pending sale record for the tempId
func (s *BadgerStore) DeletePendingSale(ctx context.Context, tempID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(pendingKey(tempID))
	})
	return errors.Wrap(err, "failed to delete pending sale")
}

// EnqueueAction appends the action to the sync queue and returns its id
func (s *BadgerStore) EnqueueAction(ctx context.Context, action *models.SyncAction) (uint64, error) {
	next, err := s.seq.Next()
	if err != nil {
		return 0, errors.Wrap(err, "failed to allocate queue id")
	}
	// Ids start at 1 so the zero value never names a real action.
	action.ID = next + 1

	data, err := json.Marshal(action)
	if err != nil {
		return 0, errors.Wrap(err, "failed to marshal sync action")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(queueKey(action.ID), data)
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to enqueue sync action")
	}
	return action.ID, nil
}

// ListActions returns all queued actions in enqueue (FIFO) order
func (s *BadgerStore) ListActions(ctx context.Context) ([]models.SyncAction, error) {
	var actions []models.SyncAction
	err := s.scan(prefixQueue, func(v []byte) error {
		var action models.SyncAction
		if err := json.Unmarshal(v, &action); err != nil {
			return errors.Wrap(err, "failed to unmarshal sync action")
		}
		actions = append(actions, action)
		return nil
	})
	return actions, err
}

// DeleteAction removes a queued action by id
func (s *BadgerStore) DeleteAction(ctx context.Context, id uint64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(queueKey(id))
	})
	return errors.Wrap(err, "failed to delete sync action")
}

// CompleteSync writes the merged sale and removes its queue entry in a
// single transaction
func (s *BadgerStore) CompleteSync(ctx context.Context, sale *models.OfflineSale, actionID uint64) error {
	data, err := json.Marshal(sale)
	if err != nil {
		return errors.Wrap(err, "failed to marshal merged sale")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(pendingKey(sale.TempID), data); err != nil {
			return err
		}
		return txn.Delete(queueKey(actionID))
	})
	return errors.Wrap(err, "failed to commit sync completion")
}

func (s *BadgerStore) get(key []byte, out interface{}) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if err == badger.ErrKeyNotFound {
		return ErrNotFound
	}
	return errors.Wrap(err, "failed to read record")
}

func (s *BadgerStore) scan(prefix []byte, fn func(v []byte) error) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				return fn(val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "failed to scan collection")
}
