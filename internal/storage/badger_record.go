package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/voxelworld/internal/world"
)

// Ключ снимка мира внутри BadgerDB
var worldKey = []byte("world")

// BadgerRecord хранит мир в BadgerDB под saves/<name>. Снимок пишется
// одной транзакцией, атомарность коммита обеспечивает WAL базы.
type BadgerRecord struct {
	db   *badger.DB
	data *world.SavedWorld
}

// OpenBadgerRecord открывает запись мира. Пустая база — свежий мир со
// случайным сидом; повреждённые данные — ошибка.
func OpenBadgerRecord(dir, name string) (*BadgerRecord, error) {
	opts := badger.DefaultOptions(filepath.Join(dir, name))
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	r := &BadgerRecord{db: db}

	var raw []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(worldKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte{}, val...)
			return nil
		})
	})

	if err == badger.ErrKeyNotFound {
		r.data = world.NewSavedWorld(newSeed())
		if err := r.Flush(); err != nil {
			db.Close()
			return nil, err
		}
		return r, nil
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	var data world.SavedWorld
	if err := json.Unmarshal(raw, &data); err != nil {
		db.Close()
		return nil, fmt.Errorf("запись мира повреждена: %w", err)
	}
	data.Normalize()

	r.data = &data
	return r, nil
}

// World возвращает текущее состояние
func (r *BadgerRecord) World() *world.SavedWorld {
	return r.data
}

// Update применяет мутацию и фиксирует запись одной транзакцией
func (r *BadgerRecord) Update(fn func(*world.SavedWorld)) error {
	fn(r.data)
	return r.Flush()
}

// Flush записывает снимок мира одной транзакцией
func (r *BadgerRecord) Flush() error {
	raw, err := json.Marshal(r.data)
	if err != nil {
		return fmt.Errorf("ошибка сериализации мира: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(worldKey, raw)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Close фиксирует запись и закрывает базу
func (r *BadgerRecord) Close() error {
	if err := r.Flush(); err != nil {
		r.db.Close()
		return err
	}
	return r.db.Close()
}
