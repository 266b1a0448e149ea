package network

import (
	"fmt"
	"net"

	"github.com/annel0/voxelworld/internal/logging"
)

// TCPServer принимает потоковые соединения надёжного канала
type TCPServer struct {
	listener net.Listener
	gs       *GameServer
	udp      *UDPServer
}

// NewTCPServer создаёт TCP-сервер на указанном адресе
func NewTCPServer(address string, gs *GameServer, udp *UDPServer) (*TCPServer, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть TCP %s: %w", address, err)
	}
	return &TCPServer{listener: listener, gs: gs, udp: udp}, nil
}

// Start запускает цикл приёма соединений
func (s *TCPServer) Start() {
	logging.Info("TCP сервер слушает %s", s.listener.Addr())
	go s.acceptLoop()
}

// Stop закрывает слушатель; активные сессии завершаются своим чередом
func (s *TCPServer) Stop() {
	s.listener.Close()
}

// Addr возвращает фактический адрес слушателя
func (s *TCPServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *TCPServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			logging.Info("TCP сервер остановлен: %v", err)
			return
		}
		go runStreamSession(s.gs, s.udp, conn)
	}
}
