package protocol

import (
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
)

// ===== Клиент -> Сервер =====

// HelloRequest — первое сообщение соединения. Несовпадение версии
// протокола или занятое имя приводят к Disconnect и закрытию.
type HelloRequest struct {
	Name     string `json:"name"`
	Protocol uint64 `json:"protocol"`
}

// ChatRequest — сообщение чата от клиента
type ChatRequest struct {
	Message string `json:"message"`
}

// PlaceBlockRequest — установка блока по мировым координатам.
// Снятие блока кодируется установкой воздуха.
type PlaceBlockRequest struct {
	Pos   vec.Vec3    `json:"pos"`
	Block block.Block `json:"block"`
}

// LoadChunksRequest — запрос правок для набора чанков.
// Чанки без сохранённых правок сервер молча пропускает.
type LoadChunksRequest struct {
	Chunks []vec.Vec3 `json:"chunks"`
}

// MoveRequest — обновление позиции игрока (ненадёжный канал)
type MoveRequest struct {
	Pos vec.Vec3F `json:"pos"`
}

// ===== Сервер -> Клиент =====

// ConnectionInfo отправляется сразу после успешного рукопожатия.
// Позиция может быть сторожевым значением vec.Unset — тогда клиент
// выбирает точку спавна сам.
type ConnectionInfo struct {
	Seed     uint32    `json:"seed"`
	Pos      vec.Vec3F `json:"pos"`
	ClientID uint64    `json:"client_id"`
}

// ChatBroadcast — сообщение чата с именем отправителя
type ChatBroadcast struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// PlayerConnected — уведомление о подключении игрока
type PlayerConnected struct {
	Name string    `json:"name"`
	Pos  vec.Vec3F `json:"pos"`
}

// PlayerDisconnected — уведомление об отключении игрока
type PlayerDisconnected struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ChunkUpdate — полный снимок правок чанка. Клиент накладывает его
// заново целиком; снимки со старой ревизией отбрасываются.
type ChunkUpdate struct {
	Coords vec.Vec3          `json:"coords"`
	Chunk  *world.SavedChunk `json:"chunk"`
}

// PlayerInfo — имя и позиция игрока в таблице PlayerData
type PlayerInfo struct {
	Name string    `json:"name"`
	Pos  vec.Vec3F `json:"pos"`
}

// PlayerData — таблица всех подключённых игроков
type PlayerData struct {
	Players map[uint64]PlayerInfo `json:"players"`
}

// Disconnect — принудительное отключение с причиной
type Disconnect struct {
	Reason string `json:"reason"`
}
