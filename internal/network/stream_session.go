package network

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/protocol"
)

// handshakeTimeout — предел ожидания первого кадра соединения
const handshakeTimeout = 5 * time.Second

// remoteConn — подключение поверх потокового транспорта (TCP или KCP).
// Надёжные сообщения идут кадрами в поток, ненадёжные — датаграммами
// через UDP-сервер по обратному адресу клиента.
type remoteConn struct {
	id     uint64
	stream net.Conn
	udp    *UDPServer

	writeMu sync.Mutex
}

func (c *remoteConn) ID() uint64 { return c.id }

func (c *remoteConn) SendReliable(t protocol.MsgType, payload interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteFrame(c.stream, t, payload)
}

func (c *remoteConn) SendUnreliable(t protocol.MsgType, payload interface{}) error {
	if c.udp == nil {
		return nil // UDP-канал не поднят: молчаливая потеря
	}
	return c.udp.SendTo(c.id, t, payload)
}

func (c *remoteConn) RemoteAddr() string {
	return c.stream.RemoteAddr().String()
}

func (c *remoteConn) Close() error {
	return c.stream.Close()
}

// runStreamSession обслуживает одно потоковое соединение: рукопожатие,
// регистрация в игровом цикле, чтение кадров до разрыва. Общий путь
// TCP и KCP транспортов.
func runStreamSession(gs *GameServer, udp *UDPServer, stream net.Conn) {
	defer stream.Close()

	name, err := readHello(stream)
	if err != nil {
		logging.Warn("Рукопожатие с %s не удалось: %v", stream.RemoteAddr(), err)
		return
	}

	conn := &remoteConn{id: nextConnID(), stream: stream, udp: udp}
	gs.Connect(conn, name)

	for {
		frame, err := protocol.ReadFrame(stream)
		if err != nil {
			reason := "соединение закрыто"
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				reason = err.Error()
			}
			gs.Disconnected(conn.id, reason)
			if udp != nil {
				udp.Unregister(conn.id)
			}
			return
		}
		gs.HandleFrame(conn.id, frame)
	}
}

// readHello читает и проверяет первый кадр соединения.
// Любой другой тип или несовпадение версии протокола — отказ.
func readHello(stream net.Conn) (string, error) {
	stream.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer stream.SetReadDeadline(time.Time{})

	frame, err := protocol.ReadFrame(stream)
	if err != nil {
		return "", err
	}
	if frame.Type != protocol.MsgHello {
		return "", fmt.Errorf("ожидался hello, получен %s", frame.Type)
	}

	var hello protocol.HelloRequest
	if err := frame.Decode(&hello); err != nil {
		return "", err
	}
	if hello.Name == "" {
		refuseHandshake(stream, "пустое имя игрока")
		return "", errors.New("пустое имя игрока")
	}
	if hello.Protocol != protocol.ProtocolID() {
		reason := fmt.Sprintf("несовместимая версия протокола: клиент %d, сервер %d",
			hello.Protocol, protocol.ProtocolID())
		refuseHandshake(stream, reason)
		return "", errors.New(reason)
	}
	return hello.Name, nil
}

// refuseHandshake сообщает причину отказа до закрытия соединения
func refuseHandshake(stream net.Conn, reason string) {
	protocol.WriteFrame(stream, protocol.MsgDisconnect, protocol.Disconnect{Reason: reason})
}
