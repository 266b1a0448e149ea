package world

import (
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
)

// SavedChunk хранит правки чанка относительно сгенерированного
// ландшафта: разреженную карту поставленных/сломанных блоков и список
// сущностей. Инвариант: генерация по сиду + наложение правок даёт
// актуальное состояние чанка.
//
// Revision — монотонный счётчик правок. Каждое слияние на сервере
// увеличивает его; клиент отбрасывает снимки, чья ревизия не новее
// уже применённой.
type SavedChunk struct {
	Blocks   map[vec.Vec3]block.Block `json:"blocks"`
	Entities []Entity                 `json:"entities,omitempty"`
	Revision uint64                   `json:"revision"`
}

// NewSavedChunk создаёт пустой набор правок
func NewSavedChunk() *SavedChunk {
	return &SavedChunk{Blocks: make(map[vec.Vec3]block.Block)}
}

// Set вносит правку (вставка или перезапись) и увеличивает ревизию
func (sc *SavedChunk) Set(local vec.Vec3, b block.Block) {
	if sc.Blocks == nil {
		sc.Blocks = make(map[vec.Vec3]block.Block)
	}
	sc.Blocks[local] = b
	sc.Revision++
}

// ApplyTo накладывает правки на чанк. Операция идемпотентна:
// повторное наложение того же снимка не меняет результат.
func (sc *SavedChunk) ApplyTo(c *Chunk) {
	for local, b := range sc.Blocks {
		c.SetBlock(local, b)
	}
	if len(sc.Entities) > 0 {
		c.Entities = append(c.Entities[:0], sc.Entities...)
	}
}

// Clone возвращает глубокую копию правок
func (sc *SavedChunk) Clone() *SavedChunk {
	cp := &SavedChunk{
		Blocks:   make(map[vec.Vec3]block.Block, len(sc.Blocks)),
		Revision: sc.Revision,
	}
	for pos, b := range sc.Blocks {
		cp.Blocks[pos] = b
	}
	if len(sc.Entities) > 0 {
		cp.Entities = append([]Entity(nil), sc.Entities...)
	}
	return cp
}

// PlayerState — сохранённое состояние игрока между сессиями
type PlayerState struct {
	Pos      vec.Vec3F `json:"pos"`
	Velocity vec.Vec3F `json:"velocity"`
	Yaw      float64   `json:"yaw"`
	Pitch    float64   `json:"pitch"`
}

// SavedWorld — долговечное состояние мира: сид генерации, состояния
// игроков по имени и правки чанков по координатам.
type SavedWorld struct {
	Seed    uint32                   `json:"seed"`
	Players map[string]PlayerState   `json:"players"`
	Chunks  map[vec.Vec3]*SavedChunk `json:"chunks"`
}

// NewSavedWorld создаёт пустой мир с указанным сидом
func NewSavedWorld(seed uint32) *SavedWorld {
	return &SavedWorld{
		Seed:    seed,
		Players: make(map[string]PlayerState),
		Chunks:  make(map[vec.Vec3]*SavedChunk),
	}
}

// Normalize инициализирует nil-карты после десериализации
func (w *SavedWorld) Normalize() {
	if w.Players == nil {
		w.Players = make(map[string]PlayerState)
	}
	if w.Chunks == nil {
		w.Chunks = make(map[vec.Vec3]*SavedChunk)
	}
	for _, sc := range w.Chunks {
		if sc.Blocks == nil {
			sc.Blocks = make(map[vec.Vec3]block.Block)
		}
	}
}

// ChunkAt возвращает правки чанка, создавая пустой набор при отсутствии
func (w *SavedWorld) ChunkAt(coords vec.Vec3) *SavedChunk {
	sc, ok := w.Chunks[coords]
	if !ok {
		sc = NewSavedChunk()
		w.Chunks[coords] = sc
	}
	return sc
}

// Merge вносит правку блока по мировым координатам: позиция
// раскладывается на чанк и локальные координаты, правка сливается в
// SavedChunk с инкрементом ревизии. Возвращаются координаты чанка и
// обновлённый набор правок.
func (w *SavedWorld) Merge(worldPos vec.Vec3, b block.Block) (vec.Vec3, *SavedChunk) {
	coords := ChunkCoords(worldPos)
	sc := w.ChunkAt(coords)
	sc.Set(LocalCoords(worldPos), b)
	return coords, sc
}
