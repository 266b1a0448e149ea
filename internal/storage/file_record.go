package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/annel0/voxelworld/internal/world"
)

var (
	fileEncoder, _ = zstd.NewWriter(nil)
	fileDecoder, _ = zstd.NewReader(nil)
)

// FileRecord хранит мир одним файлом saves/<name>.vxw:
// zstd-сжатый JSON, записываемый во временный файл с последующим
// переименованием. Переименование атомарно, поэтому после сбоя файл
// содержит либо прежний, либо новый снимок целиком.
type FileRecord struct {
	path string
	data *world.SavedWorld
}

// OpenFileRecord открывает запись мира. Отсутствующий файл — свежий
// мир со случайным сидом; повреждённый — ошибка.
func OpenFileRecord(dir, name string) (*FileRecord, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	r := &FileRecord{path: filepath.Join(dir, name+".vxw")}

	raw, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		r.data = world.NewSavedWorld(newSeed())
		if err := r.Flush(); err != nil {
			return nil, err
		}
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", r.path, err)
	}

	decompressed, err := fileDecoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("файл мира %s повреждён: %w", r.path, err)
	}

	var data world.SavedWorld
	if err := json.Unmarshal(decompressed, &data); err != nil {
		return nil, fmt.Errorf("файл мира %s повреждён: %w", r.path, err)
	}
	data.Normalize()

	r.data = &data
	return r, nil
}

// World возвращает текущее состояние
func (r *FileRecord) World() *world.SavedWorld {
	return r.data
}

// Update применяет мутацию и атомарно фиксирует запись
func (r *FileRecord) Update(fn func(*world.SavedWorld)) error {
	fn(r.data)
	return r.Flush()
}

// Flush пишет снимок во временный файл и переименовывает его на место
func (r *FileRecord) Flush() error {
	raw, err := json.Marshal(r.data)
	if err != nil {
		return fmt.Errorf("ошибка сериализации мира: %w", err)
	}
	compressed := fileEncoder.EncodeAll(raw, nil)

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".vxw-*")
	if err != nil {
		return fmt.Errorf("не удалось создать временный файл: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи снимка: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка синхронизации снимка: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка фиксации снимка: %w", err)
	}
	return nil
}

// Close фиксирует и закрывает запись
func (r *FileRecord) Close() error {
	return r.Flush()
}
