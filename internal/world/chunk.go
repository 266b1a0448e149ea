package world

import (
	"sync"

	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
)

// Chunk представляет столб мира 16x256x16 блоков.
// Blocks хранится плотным массивом, индексация через BlockIndex.
type Chunk struct {
	Coords   vec.Vec3 // Координаты чанка (Y всегда 0)
	Blocks   []block.Block
	Entities []Entity

	Mu sync.RWMutex // Мьютекс для безопасного доступа
}

// NewChunk создаёт пустой чанк с указанными координатами
func NewChunk(coords vec.Vec3) *Chunk {
	return &Chunk{
		Coords: coords,
		Blocks: make([]block.Block, ChunkSize*ChunkHeight*ChunkSize),
	}
}

// GetBlock возвращает блок по локальным координатам.
// За пределами чанка возвращается воздух.
func (c *Chunk) GetBlock(local vec.Vec3) block.Block {
	if !InChunkBounds(local) {
		return block.AirBlock
	}

	c.Mu.RLock()
	defer c.Mu.RUnlock()

	return c.Blocks[BlockIndex(local)]
}

// SetBlock устанавливает блок по локальным координатам
func (c *Chunk) SetBlock(local vec.Vec3, b block.Block) {
	if !InChunkBounds(local) {
		return
	}

	c.Mu.Lock()
	defer c.Mu.Unlock()

	c.Blocks[BlockIndex(local)] = b
}

// RemeshSet — идемпотентное множество чанков, ожидающих перестройки
// меша. Повторная пометка того же чанка ничего не меняет.
type RemeshSet map[vec.Vec3]struct{}

// NewRemeshSet создаёт пустое множество
func NewRemeshSet() RemeshSet {
	return make(RemeshSet)
}

// Mark помечает чанк на перестройку
func (s RemeshSet) Mark(coords vec.Vec3) {
	s[coords] = struct{}{}
}

// Contains проверяет, помечен ли чанк
func (s RemeshSet) Contains(coords vec.Vec3) bool {
	_, ok := s[coords]
	return ok
}

// Drain возвращает все помеченные чанки и очищает множество
func (s RemeshSet) Drain() []vec.Vec3 {
	coords := make([]vec.Vec3, 0, len(s))
	for c := range s {
		coords = append(coords, c)
		delete(s, c)
	}
	return coords
}

// Place записывает блок в плотный массив, зеркалирует правку в
// SavedChunk (если он передан) и помечает чанк на перестройку меша.
// Правка на границе X/Z дополнительно помечает соседний чанк:
// его меш зависит от приграничных блоков соседа.
func (c *Chunk) Place(local vec.Vec3, b block.Block, saved *SavedChunk, remesh RemeshSet) {
	if !InChunkBounds(local) {
		return
	}

	c.SetBlock(local, b)
	if saved != nil {
		saved.Set(local, b)
	}

	if remesh == nil {
		return
	}
	if local.X == 0 {
		remesh.Mark(c.Coords.Add(vec.Vec3{X: -1}))
	}
	if local.X == ChunkSize-1 {
		remesh.Mark(c.Coords.Add(vec.Vec3{X: 1}))
	}
	if local.Z == 0 {
		remesh.Mark(c.Coords.Add(vec.Vec3{Z: -1}))
	}
	if local.Z == ChunkSize-1 {
		remesh.Mark(c.Coords.Add(vec.Vec3{Z: 1}))
	}
	remesh.Mark(c.Coords)
}
