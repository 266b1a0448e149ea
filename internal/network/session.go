package network

import (
	"github.com/annel0/voxelworld/internal/vec"
)

// Session — состояние подключённого игрока внутри игрового цикла.
// Вся структура принадлежит циклу, мьютексы не нужны.
type Session struct {
	Conn Conn
	Name string

	// Pos — последняя известная позиция. Сторожевое значение
	// vec.Unset означает, что игрок ещё не сообщал позицию и
	// сохранённой у него не было.
	Pos vec.Vec3F
}

// ID возвращает идентификатор подключения сессии
func (s *Session) ID() uint64 {
	return s.Conn.ID()
}
