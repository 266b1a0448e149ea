package world

import "github.com/annel0/voxelworld/internal/vec"

// EntityKind перечисляет виды декоративных сущностей мира
type EntityKind uint8

const (
	EntityFerris EntityKind = iota
)

// String возвращает строковое имя вида сущности
func (k EntityKind) String() string {
	switch k {
	case EntityFerris:
		return "ferris"
	default:
		return "unknown"
	}
}

// Entity описывает декоративную сущность, привязанную к чанку.
// Rot задаётся в градусах вокруг вертикальной оси.
type Entity struct {
	Kind EntityKind `json:"kind"`
	Pos  vec.Vec3F  `json:"pos"`
	Rot  float64    `json:"rot"`
}
