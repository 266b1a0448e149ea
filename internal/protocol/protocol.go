// Package protocol определяет сетевой протокол: закрытые наборы
// сообщений клиента и сервера, классы каналов доставки и бинарный
// кодек кадров.
package protocol

import "fmt"

// Версия протокола. Идентификатор собирается из семантической версии
// и сверяется при рукопожатии.
const (
	VersionMajor = 0
	VersionMinor = 4
	VersionPatch = 0
)

// ProtocolID возвращает числовой идентификатор версии протокола
func ProtocolID() uint64 {
	return VersionMajor*1_000_000 + VersionMinor*1_000 + VersionPatch
}

// Channel определяет класс доставки сообщения
type Channel uint8

const (
	// ChannelReliableOrdered — надёжная доставка с сохранением порядка
	ChannelReliableOrdered Channel = iota
	// ChannelReliableUnordered — надёжная доставка без гарантии порядка
	ChannelReliableUnordered
	// ChannelUnreliable — без гарантий доставки и порядка
	ChannelUnreliable
)

// String возвращает имя класса канала
func (c Channel) String() string {
	switch c {
	case ChannelReliableOrdered:
		return "reliable_ordered"
	case ChannelReliableUnordered:
		return "reliable_unordered"
	case ChannelUnreliable:
		return "unreliable"
	default:
		return "unknown"
	}
}

// MsgType — числовой код типа сообщения в кадре
type MsgType uint16

// Клиент -> Сервер
const (
	MsgHello      MsgType = 0x01 // Рукопожатие: имя и версия протокола
	MsgChat       MsgType = 0x02 // Сообщение чата
	MsgPlaceBlock MsgType = 0x03 // Установка/снятие блока
	MsgLoadChunks MsgType = 0x04 // Запрос правок чанков
	MsgMove       MsgType = 0x05 // Обновление позиции игрока
)

// Сервер -> Клиент
const (
	MsgConnectionInfo     MsgType = 0x10 // Сид мира, позиция, ID подключения
	MsgChatBroadcast      MsgType = 0x11 // Чат с именем отправителя
	MsgPlayerConnected    MsgType = 0x12 // Игрок подключился
	MsgPlayerDisconnected MsgType = 0x13 // Игрок отключился
	MsgChunkUpdate        MsgType = 0x14 // Полный снимок правок чанка
	MsgPlayerData         MsgType = 0x15 // Таблица игроков
	MsgDisconnect         MsgType = 0x16 // Принудительное отключение с причиной
)

// String возвращает имя типа сообщения
func (t MsgType) String() string {
	switch t {
	case MsgHello:
		return "hello"
	case MsgChat:
		return "chat"
	case MsgPlaceBlock:
		return "place_block"
	case MsgLoadChunks:
		return "load_chunks"
	case MsgMove:
		return "move"
	case MsgConnectionInfo:
		return "connection_info"
	case MsgChatBroadcast:
		return "chat_broadcast"
	case MsgPlayerConnected:
		return "player_connected"
	case MsgPlayerDisconnected:
		return "player_disconnected"
	case MsgChunkUpdate:
		return "chunk_update"
	case MsgPlayerData:
		return "player_data"
	case MsgDisconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint16(t))
	}
}

// channels — привязка типов сообщений к классам каналов.
// Привязка является частью контракта протокола: транспорт обязан
// отвергать сообщение, отправляемое не своим классом.
var channels = map[MsgType]Channel{
	MsgHello:      ChannelReliableOrdered,
	MsgChat:       ChannelReliableOrdered,
	MsgPlaceBlock: ChannelReliableOrdered,
	MsgLoadChunks: ChannelReliableOrdered,
	MsgMove:       ChannelUnreliable,

	MsgConnectionInfo:     ChannelReliableOrdered,
	MsgChatBroadcast:      ChannelReliableOrdered,
	MsgPlayerConnected:    ChannelReliableOrdered,
	MsgPlayerDisconnected: ChannelReliableOrdered,
	MsgChunkUpdate:        ChannelReliableUnordered,
	MsgPlayerData:         ChannelUnreliable,
	MsgDisconnect:         ChannelReliableOrdered,
}

// ChannelOf возвращает класс канала для типа сообщения.
// Неизвестный тип — ошибка протокола.
func ChannelOf(t MsgType) (Channel, error) {
	ch, ok := channels[t]
	if !ok {
		return 0, fmt.Errorf("неизвестный тип сообщения 0x%02x", uint16(t))
	}
	return ch, nil
}

// KnownType проверяет, входит ли тип в закрытый набор протокола
func KnownType(t MsgType) bool {
	_, ok := channels[t]
	return ok
}
