// Package network реализует серверную сетевую подсистему: игровой цикл
// с фиксированным шагом, реестр сессий, надёжные транспорты (TCP, KCP)
// и ненадёжный UDP-канал.
package network

import (
	"sync/atomic"

	"github.com/annel0/voxelworld/internal/protocol"
)

// Conn — подключение клиента с точки зрения игрового цикла.
// Транспорт отвечает за доставку, цикл — за то, что и кому отправить.
type Conn interface {
	// ID возвращает идентификатор подключения, уникальный в рамках
	// процесса сервера
	ID() uint64

	// SendReliable отправляет сообщение надёжного класса
	SendReliable(t protocol.MsgType, payload interface{}) error

	// SendUnreliable отправляет сообщение ненадёжного класса.
	// Потеря допустима: отсутствие обратного адреса не ошибка.
	SendUnreliable(t protocol.MsgType, payload interface{}) error

	// RemoteAddr возвращает адрес клиента для логов
	RemoteAddr() string

	Close() error
}

// Inbound — входящий кадр вместе с идентификатором подключения
type Inbound struct {
	ConnID uint64
	Frame  *protocol.Frame
}

// connectEvent ставится транспортом после успешного рукопожатия.
// Отказ по занятому имени или заполненному серверу — решение цикла.
type connectEvent struct {
	conn Conn
	name string
}

// disconnectEvent ставится транспортом при разрыве соединения
type disconnectEvent struct {
	connID uint64
	reason string
}

var connCounter uint64

// nextConnID выдаёт следующий идентификатор подключения
func nextConnID() uint64 {
	return atomic.AddUint64(&connCounter, 1)
}
