// Package storage реализует долговечную запись мира: один SavedWorld
// на запись, мутация с атомарным коммитом, загрузка-или-создание при
// открытии.
package storage

import (
	"fmt"
	"math/rand"

	"github.com/annel0/voxelworld/internal/world"
)

// WorldRecord — контракт долговечной записи мира.
//
// Запись владеет одним SavedWorld. Update применяет мутацию и
// атомарно фиксирует результат: после сбоя наблюдается либо прежнее,
// либо новое состояние, никогда частичное. Открытие без файла создаёт
// свежий мир со случайным сидом; повреждённые данные — ошибка,
// существующий файл молча не перезаписывается.
type WorldRecord interface {
	// World возвращает текущее состояние. Владелец — игровой цикл;
	// конкурентный доступ не предусмотрен.
	World() *world.SavedWorld

	// Update применяет мутацию и атомарно фиксирует запись
	Update(fn func(*world.SavedWorld)) error

	// Flush фиксирует текущее состояние без мутации
	Flush() error

	Close() error
}

// Open открывает запись мира выбранным бэкендом
func Open(backend, dir, name string) (WorldRecord, error) {
	switch backend {
	case "file":
		return OpenFileRecord(dir, name)
	case "badger":
		return OpenBadgerRecord(dir, name)
	default:
		return nil, fmt.Errorf("неизвестный бэкенд хранения: %q", backend)
	}
}

// newSeed возвращает случайный сид для свежего мира
func newSeed() uint32 {
	return rand.Uint32()
}
