package world

import (
	"github.com/annel0/voxelworld/internal/vec"
)

// Размеры чанка и уровень моря
const (
	ChunkSize   = 16  // Ширина чанка по X и Z
	ChunkHeight = 256 // Высота чанка (весь столб мира)
	SeaLevel    = 64  // Уровень моря: ниже генерируется вода
)

// BlockIndex преобразует локальные координаты блока в индекс
// плотного массива чанка: x + y*16 + z*16*256.
func BlockIndex(local vec.Vec3) int {
	return local.X + local.Y*ChunkSize + local.Z*ChunkSize*ChunkHeight
}

// IndexToLocal выполняет обратное преобразование индекса в координаты
func IndexToLocal(index int) vec.Vec3 {
	return vec.Vec3{
		X: index % ChunkSize,
		Y: (index / ChunkSize) % ChunkHeight,
		Z: index / (ChunkSize * ChunkHeight),
	}
}

// InChunkBounds проверяет, лежат ли локальные координаты внутри чанка
func InChunkBounds(local vec.Vec3) bool {
	return local.X >= 0 && local.X < ChunkSize &&
		local.Y >= 0 && local.Y < ChunkHeight &&
		local.Z >= 0 && local.Z < ChunkSize
}

// ChunkCoords возвращает координаты чанка, содержащего мировую позицию
func ChunkCoords(worldPos vec.Vec3) vec.Vec3 {
	return worldPos.ToChunkCoords(ChunkSize)
}

// LocalCoords возвращает позицию блока внутри его чанка
func LocalCoords(worldPos vec.Vec3) vec.Vec3 {
	return worldPos.LocalInChunk(ChunkSize)
}
