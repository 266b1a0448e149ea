// Package client реализует согласующий цикл клиента: хранилище чанков
// с фоновой генерацией, наложение серверных правок и таблицу удалённых
// игроков.
package client

import (
	"sync"

	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
)

// maxAbsorbPerFrame — предел готовых чанков, вставляемых за один кадр.
// Ограничение сглаживает всплеск при телепортации в новую область.
const maxAbsorbPerFrame = 15

// ChunkStore — клиентская карта загруженных чанков. Генерация идёт в
// фоновых горутинах, готовые чанки складываются в очередь и впитываются
// основным циклом порциями. Карта и набор «в полёте» живут под одним
// мьютексом: проверка и вставка атомарны, один чанк не генерируется
// дважды.
type ChunkStore struct {
	mu       sync.RWMutex
	chunks   map[vec.Vec3]*world.Chunk
	inflight map[vec.Vec3]struct{}
	pending  []*world.Chunk

	// edits — последний известный снимок правок на чанк (серверный
	// либо локальный). Накладывается при впитывании готового чанка.
	edits map[vec.Vec3]*world.SavedChunk

	// revisions — последняя применённая серверная ревизия на чанк.
	// Локальные правки её не двигают: фильтр сравнивает только
	// серверные снимки между собой.
	revisions map[vec.Vec3]uint64

	remesh world.RemeshSet
}

// NewChunkStore создаёт пустое хранилище
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		chunks:    make(map[vec.Vec3]*world.Chunk),
		inflight:  make(map[vec.Vec3]struct{}),
		edits:     make(map[vec.Vec3]*world.SavedChunk),
		revisions: make(map[vec.Vec3]uint64),
		remesh:    world.NewRemeshSet(),
	}
}

// BeginLoad атомарно отмечает чанк «в полёте». Возвращает false, если
// чанк уже загружен или генерируется: вызывающий не должен начинать
// вторую генерацию.
func (cs *ChunkStore) BeginLoad(coords vec.Vec3) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, loaded := cs.chunks[coords]; loaded {
		return false
	}
	if _, busy := cs.inflight[coords]; busy {
		return false
	}
	cs.inflight[coords] = struct{}{}
	return true
}

// Deliver принимает готовый чанк из горутины генерации.
// Чанк попадёт в карту при следующем впитывании.
func (cs *ChunkStore) Deliver(c *world.Chunk) {
	cs.mu.Lock()
	cs.pending = append(cs.pending, c)
	cs.mu.Unlock()
}

// Absorb вставляет в карту до maxAbsorbPerFrame готовых чанков,
// накладывает отложенные правки и снимает отметки «в полёте».
// Возвращает число вставленных чанков.
func (cs *ChunkStore) Absorb() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	n := len(cs.pending)
	if n > maxAbsorbPerFrame {
		n = maxAbsorbPerFrame
	}
	for _, c := range cs.pending[:n] {
		if sc, ok := cs.edits[c.Coords]; ok {
			sc.ApplyTo(c)
		}
		cs.chunks[c.Coords] = c
		delete(cs.inflight, c.Coords)
		cs.remesh.Mark(c.Coords)
	}
	cs.pending = cs.pending[n:]
	return n
}

// Get возвращает загруженный чанк
func (cs *ChunkStore) Get(coords vec.Vec3) (*world.Chunk, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, ok := cs.chunks[coords]
	return c, ok
}

// Len возвращает число загруженных чанков
func (cs *ChunkStore) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.chunks)
}

// ApplyUpdate накладывает серверный снимок правок. Снимок с ревизией
// не новее уже применённой отбрасывается: надёжный неупорядоченный
// канал может доставить обновления в любом порядке. Возвращает,
// был ли снимок применён.
func (cs *ChunkStore) ApplyUpdate(coords vec.Vec3, sc *world.SavedChunk) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if sc.Revision <= cs.revisions[coords] {
		return false
	}
	cs.revisions[coords] = sc.Revision
	cs.edits[coords] = sc

	// Чанк ещё не загружен: снимок дождётся впитывания
	if c, ok := cs.chunks[coords]; ok {
		sc.ApplyTo(c)
		cs.remesh.Mark(coords)
	}
	return true
}

// Place вносит локальную правку игрока: блок пишется в плотный массив,
// зеркалируется в локальный снимок правок и помечает меш. Возвращает
// false, если чанк ещё не загружен.
func (cs *ChunkStore) Place(worldPos vec.Vec3, b block.Block) bool {
	coords := world.ChunkCoords(worldPos)

	cs.mu.Lock()
	defer cs.mu.Unlock()

	c, ok := cs.chunks[coords]
	if !ok {
		return false
	}
	sc, ok := cs.edits[coords]
	if !ok {
		sc = world.NewSavedChunk()
		cs.edits[coords] = sc
	}
	c.Place(world.LocalCoords(worldPos), b, sc, cs.remesh)
	return true
}

// Unload выгружает чанк, сохраняя принятые правки: при повторной
// загрузке они наложатся снова
func (cs *ChunkStore) Unload(coords vec.Vec3) {
	cs.mu.Lock()
	delete(cs.chunks, coords)
	cs.mu.Unlock()
}

// DrainRemesh забирает накопленные отметки перестроения сетки
func (cs *ChunkStore) DrainRemesh() []vec.Vec3 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.remesh.Drain()
}
