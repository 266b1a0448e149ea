package network

import (
	"fmt"

	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/protocol"
)

// KCPServer принимает соединения надёжного канала поверх UDP.
// Кадры и рукопожатие те же, что у TCP: kcp.UDPSession реализует
// net.Conn и проходит общим путём runStreamSession.
type KCPServer struct {
	listener *kcp.Listener
	gs       *GameServer
	udp      *UDPServer
}

// NewKCPServer создаёт KCP-сервер на указанном адресе
func NewKCPServer(address string, gs *GameServer, udp *UDPServer) (*KCPServer, error) {
	listener, err := kcp.ListenWithOptions(address, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть KCP %s: %w", address, err)
	}
	return &KCPServer{listener: listener, gs: gs, udp: udp}, nil
}

// Start запускает цикл приёма соединений
func (s *KCPServer) Start() {
	logging.Info("KCP сервер слушает %s", s.listener.Addr())
	go s.acceptLoop()
}

// Stop закрывает слушатель
func (s *KCPServer) Stop() {
	s.listener.Close()
}

// Addr возвращает фактический адрес слушателя
func (s *KCPServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *KCPServer) acceptLoop() {
	for {
		session, err := s.listener.AcceptKCP()
		if err != nil {
			logging.Info("KCP сервер остановлен: %v", err)
			return
		}
		tuneKCPSession(session)
		go runStreamSession(s.gs, s.udp, session)
	}
}

// tuneKCPSession настраивает параметры KCP под игровой трафик
func tuneKCPSession(session *kcp.UDPSession) {
	session.SetStreamMode(true)
	session.SetWriteDelay(false)
	session.SetNoDelay(1, 20, 2, 1) // Агрессивные настройки для низкой задержки
	session.SetWindowSize(512, 512)
	session.SetMtu(protocol.MaxDatagramSize)
}
