package network

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/protocol"
)

// UDPServer обслуживает ненадёжный канал: принимает датаграммы Move и
// отправляет PlayerData. Обратный адрес клиента запоминается по первой
// входящей датаграмме; до этого исходящие для него молча теряются.
type UDPServer struct {
	conn *net.UDPConn
	gs   *GameServer

	mu    sync.RWMutex
	addrs map[uint64]*net.UDPAddr

	ctx    context.Context
	cancel context.CancelFunc
}

// NewUDPServer создаёт UDP-сервер на указанном адресе
func NewUDPServer(address string, gs *GameServer) (*UDPServer, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("некорректный UDP адрес %s: %w", address, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть UDP %s: %w", address, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &UDPServer{
		conn:   conn,
		gs:     gs,
		addrs:  make(map[uint64]*net.UDPAddr),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start запускает цикл приёма датаграмм
func (s *UDPServer) Start() {
	logging.Info("UDP сервер слушает %s", s.conn.LocalAddr())
	go s.receiveLoop()
}

// Stop останавливает сервер
func (s *UDPServer) Stop() {
	s.cancel()
	s.conn.Close()
}

// Addr возвращает фактический адрес слушателя
func (s *UDPServer) Addr() string {
	return s.conn.LocalAddr().String()
}

// Unregister забывает обратный адрес клиента
func (s *UDPServer) Unregister(connID uint64) {
	s.mu.Lock()
	delete(s.addrs, connID)
	s.mu.Unlock()
}

// SendTo отправляет датаграмму клиенту по запомненному адресу.
// Клиент без адреса ещё не прислал ни одной датаграммы: потеря.
func (s *UDPServer) SendTo(connID uint64, t protocol.MsgType, payload interface{}) error {
	s.mu.RLock()
	addr, ok := s.addrs[connID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	packet, err := protocol.EncodeDatagram(connID, t, payload)
	if err != nil {
		return err
	}
	if _, err := s.conn.WriteToUDP(packet, addr); err != nil {
		return fmt.Errorf("ошибка отправки датаграммы %s: %w", t, err)
	}
	return nil
}

func (s *UDPServer) receiveLoop() {
	buffer := make([]byte, protocol.MaxDatagramSize)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		// Таймаут чтения, чтобы цикл замечал остановку
		s.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))

		n, addr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			logging.Info("UDP сервер остановлен: %v", err)
			return
		}

		connID, frame, err := protocol.DecodeDatagram(buffer[:n])
		if err != nil {
			metricMessagesDropped.Inc()
			logging.Debug("Некорректная датаграмма от %s: %v", addr, err)
			continue
		}

		// Payload указывает в буфер чтения: копия обязательна,
		// кадр переживает итерацию цикла
		frame.Payload = append([]byte(nil), frame.Payload...)

		s.learnAddr(connID, addr)
		s.gs.HandleDatagram(connID, frame)
	}
}

// learnAddr запоминает обратный адрес клиента
func (s *UDPServer) learnAddr(connID uint64, addr *net.UDPAddr) {
	s.mu.Lock()
	s.addrs[connID] = addr
	s.mu.Unlock()
}
