package network

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/annel0/voxelworld/internal/config"
	"github.com/annel0/voxelworld/internal/eventbus"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/protocol"
	"github.com/annel0/voxelworld/internal/storage"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
)

// Ёмкости очередей между транспортами и игровым циклом
const (
	connectQueueSize  = 64
	reliableQueueSize = 1024
	datagramQueueSize = 1024
)

// GameServer — авторитетный игровой цикл. Все мутации мира и реестра
// сессий происходят в одной горутине, обрабатывающей очереди событий
// с фиксированной частотой. Транспорты только ставят события в очереди
// и никогда не трогают состояние напрямую.
type GameServer struct {
	record storage.WorldRecord

	connects    chan connectEvent
	disconnects chan disconnectEvent
	reliable    chan Inbound
	datagrams   chan Inbound
	saveReqs    chan chan error

	sessions map[uint64]*Session
	names    map[string]uint64

	maxPlayers      int
	tickRate        int
	forwardRadiusSq float64
	autosaveEvery   time.Duration
	lastSave        time.Time
	startedAt       time.Time

	// Снимок для операторского API: цикл обновляет его при изменении
	// реестра, REST-обработчики читают под мьютексом
	snapMu       sync.RWMutex
	snapshot     []PlayerSnapshot
	snapLastSave time.Time

	// Закрывается по завершении цикла, освобождает ожидающих RequestSave
	stopped chan struct{}
}

// ErrServerStopped возвращается операциям, пришедшим после остановки цикла
var ErrServerStopped = errors.New("сервер остановлен")

// NewGameServer создаёт игровой цикл поверх открытой записи мира
func NewGameServer(record storage.WorldRecord, cfg *config.ServerConfig) *GameServer {
	radius := float64(cfg.GetForwardRadius())
	return &GameServer{
		record:          record,
		connects:        make(chan connectEvent, connectQueueSize),
		disconnects:     make(chan disconnectEvent, connectQueueSize),
		reliable:        make(chan Inbound, reliableQueueSize),
		datagrams:       make(chan Inbound, datagramQueueSize),
		saveReqs:        make(chan chan error, 8),
		sessions:        make(map[uint64]*Session),
		names:           make(map[string]uint64),
		maxPlayers:      cfg.GetMaxPlayers(),
		tickRate:        cfg.GetTickRate(),
		forwardRadiusSq: radius * radius,
		autosaveEvery:   time.Duration(cfg.GetAutosaveSec()) * time.Second,
		lastSave:        time.Now(),
		snapLastSave:    time.Now(),
		startedAt:       time.Now(),
		stopped:         make(chan struct{}),
	}
}

// ===== Вход со стороны транспортов =====

// Connect ставит в очередь подключение после успешного рукопожатия
func (gs *GameServer) Connect(conn Conn, name string) {
	gs.connects <- connectEvent{conn: conn, name: name}
}

// Disconnected ставит в очередь разрыв соединения
func (gs *GameServer) Disconnected(connID uint64, reason string) {
	gs.disconnects <- disconnectEvent{connID: connID, reason: reason}
}

// HandleFrame ставит в очередь кадр надёжного канала
func (gs *GameServer) HandleFrame(connID uint64, frame *protocol.Frame) {
	select {
	case gs.reliable <- Inbound{ConnID: connID, Frame: frame}:
	default:
		// Очередь полна: клиент шлёт быстрее, чем цикл успевает
		metricMessagesDropped.Inc()
		logging.Warn("Очередь надёжного канала переполнена, кадр %s отброшен", frame.Type)
	}
}

// HandleDatagram ставит в очередь датаграмму ненадёжного канала.
// Переполнение очереди — молчаливая потеря, как и в самом канале.
func (gs *GameServer) HandleDatagram(connID uint64, frame *protocol.Frame) {
	select {
	case gs.datagrams <- Inbound{ConnID: connID, Frame: frame}:
	default:
		metricMessagesDropped.Inc()
	}
}

// RequestSave просит цикл сохранить мир и ждёт результата.
// Используется операторским REST API. После остановки цикла
// возвращает ErrServerStopped вместо вечного ожидания.
func (gs *GameServer) RequestSave() error {
	done := make(chan error, 1)
	select {
	case gs.saveReqs <- done:
	case <-gs.stopped:
		return ErrServerStopped
	}
	select {
	case err := <-done:
		return err
	case <-gs.stopped:
		return ErrServerStopped
	}
}

// ===== Игровой цикл =====

// Run крутит цикл с фиксированным шагом до отмены контекста.
// Накопитель по настенным часам: пропущенные шаги навёрстываются.
func (gs *GameServer) Run(ctx context.Context) {
	interval := time.Second / time.Duration(gs.tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var accumulator time.Duration
	prev := time.Now()

	logging.Info("Игровой цикл запущен: %d Гц, радиус рассылки² %.0f", gs.tickRate, gs.forwardRadiusSq)

	for {
		select {
		case <-ctx.Done():
			gs.shutdown()
			return
		case now := <-ticker.C:
			accumulator += now.Sub(prev)
			prev = now
			for accumulator >= interval {
				gs.Step()
				accumulator -= interval
			}
		}
	}
}

// Step выполняет один шаг цикла: осушает очереди событий в порядке
// подключения -> надёжные кадры -> датаграммы -> разрывы, затем
// проверяет автосохранение. Вызывается из Run; тесты зовут напрямую.
func (gs *GameServer) Step() {
	for {
		select {
		case ev := <-gs.connects:
			gs.handleConnect(ev.conn, ev.name)
			continue
		default:
		}
		break
	}

	for {
		select {
		case in := <-gs.reliable:
			gs.dispatchReliable(in)
			continue
		default:
		}
		break
	}

	for {
		select {
		case in := <-gs.datagrams:
			gs.dispatchDatagram(in)
			continue
		default:
		}
		break
	}

	for {
		select {
		case ev := <-gs.disconnects:
			gs.handleDisconnect(ev.connID, ev.reason)
			continue
		default:
		}
		break
	}

	for {
		select {
		case done := <-gs.saveReqs:
			done <- gs.save()
			continue
		default:
		}
		break
	}

	if gs.autosaveEvery > 0 && time.Since(gs.lastSave) >= gs.autosaveEvery {
		if err := gs.save(); err != nil {
			logging.Error("Автосохранение не удалось: %v", err)
		}
	}

	gs.refreshSnapshot()
}

// shutdown отключает всех игроков и сохраняет мир.
// Закрытие stopped освобождает REST-обработчики, ждущие сохранения.
func (gs *GameServer) shutdown() {
	defer close(gs.stopped)
	logging.Info("Остановка игрового цикла, игроков онлайн: %d", len(gs.sessions))
	for id, s := range gs.sessions {
		gs.sendReliable(s, protocol.MsgDisconnect, protocol.Disconnect{Reason: "сервер останавливается"})
		s.Conn.Close()
		gs.persistSession(s)
		delete(gs.sessions, id)
		delete(gs.names, s.Name)
	}
	metricSessions.Set(0)
	if err := gs.record.Close(); err != nil {
		logging.Error("Ошибка финального сохранения: %v", err)
	}
}

// ===== Обработчики событий =====

func (gs *GameServer) handleConnect(conn Conn, name string) {
	if len(gs.sessions) >= gs.maxPlayers {
		logging.Warn("Отказ %s (%s): сервер заполнен", name, conn.RemoteAddr())
		gs.refuse(conn, "сервер заполнен")
		return
	}
	if _, taken := gs.names[name]; taken {
		logging.Warn("Отказ %s (%s): имя уже занято", name, conn.RemoteAddr())
		gs.refuse(conn, "имя уже занято")
		return
	}

	// Сохранённая позиция или сторожевое значение для нового игрока
	pos := vec.Unset()
	if saved, ok := gs.record.World().Players[name]; ok {
		pos = saved.Pos
	}

	s := &Session{Conn: conn, Name: name, Pos: pos}
	gs.sessions[conn.ID()] = s
	gs.names[name] = conn.ID()
	metricSessions.Inc()

	logging.Info("Игрок %s подключился (%s, id=%d)", name, conn.RemoteAddr(), conn.ID())
	eventbus.Publish(context.Background(), eventbus.NewEnvelope(eventbus.EventPlayerJoin, name, ""))

	gs.broadcastExcept(conn.ID(), protocol.MsgPlayerConnected, protocol.PlayerConnected{Name: name, Pos: pos})
	gs.sendReliable(s, protocol.MsgConnectionInfo, protocol.ConnectionInfo{
		Seed:     gs.record.World().Seed,
		Pos:      pos,
		ClientID: conn.ID(),
	})
	gs.broadcastPlayerData(0)
}

// refuse отправляет причину отказа и закрывает соединение.
// Сессия не создаётся, последующий disconnectEvent пройдёт вхолостую.
func (gs *GameServer) refuse(conn Conn, reason string) {
	if err := conn.SendReliable(protocol.MsgDisconnect, protocol.Disconnect{Reason: reason}); err == nil {
		metricMessagesOut.WithLabelValues(protocol.MsgDisconnect.String()).Inc()
	}
	conn.Close()
}

func (gs *GameServer) handleDisconnect(connID uint64, reason string) {
	s, ok := gs.sessions[connID]
	if !ok {
		return
	}
	delete(gs.sessions, connID)
	delete(gs.names, s.Name)
	metricSessions.Dec()

	logging.Info("Игрок %s отключился: %s", s.Name, reason)
	eventbus.Publish(context.Background(), eventbus.NewEnvelope(eventbus.EventPlayerLeft, s.Name, reason))

	gs.broadcastExcept(connID, protocol.MsgPlayerDisconnected, protocol.PlayerDisconnected{Name: s.Name, Reason: reason})
	gs.persistSession(s)
}

// persistSession записывает состояние игрока в мир: последняя позиция,
// нулевая скорость и сброшенные углы обзора
func (gs *GameServer) persistSession(s *Session) {
	gs.record.World().Players[s.Name] = world.PlayerState{
		Pos:      s.Pos,
		Velocity: vec.ZeroF,
	}
}

func (gs *GameServer) dispatchReliable(in Inbound) {
	s, ok := gs.sessions[in.ConnID]
	if !ok {
		return // Кадр пережил свою сессию
	}
	metricMessagesIn.WithLabelValues(in.Frame.Type.String()).Inc()

	switch in.Frame.Type {
	case protocol.MsgChat:
		var req protocol.ChatRequest
		if err := in.Frame.Decode(&req); err != nil {
			gs.dropMalformed(s, err)
			return
		}
		gs.handleChat(s, req)

	case protocol.MsgPlaceBlock:
		var req protocol.PlaceBlockRequest
		if err := in.Frame.Decode(&req); err != nil {
			gs.dropMalformed(s, err)
			return
		}
		gs.handlePlaceBlock(s, req)

	case protocol.MsgLoadChunks:
		var req protocol.LoadChunksRequest
		if err := in.Frame.Decode(&req); err != nil {
			gs.dropMalformed(s, err)
			return
		}
		gs.handleLoadChunks(s, req)

	case protocol.MsgHello:
		// Повторное рукопожатие после установления сессии
		logging.Warn("Игрок %s прислал повторный hello, отключаем", s.Name)
		gs.sendReliable(s, protocol.MsgDisconnect, protocol.Disconnect{Reason: "нарушение протокола"})
		s.Conn.Close()

	default:
		metricMessagesDropped.Inc()
		logging.Warn("Неожиданный тип %s от игрока %s", in.Frame.Type, s.Name)
	}
}

func (gs *GameServer) dispatchDatagram(in Inbound) {
	s, ok := gs.sessions[in.ConnID]
	if !ok {
		return
	}
	metricMessagesIn.WithLabelValues(in.Frame.Type.String()).Inc()

	if in.Frame.Type != protocol.MsgMove {
		metricMessagesDropped.Inc()
		return
	}
	var req protocol.MoveRequest
	if err := in.Frame.Decode(&req); err != nil {
		metricMessagesDropped.Inc()
		return
	}
	gs.handleMove(s, req)
}

// dropMalformed отбрасывает некорректный кадр без разрыва соединения
func (gs *GameServer) dropMalformed(s *Session, err error) {
	metricMessagesDropped.Inc()
	logging.Warn("Некорректный кадр от %s: %v", s.Name, err)
}

func (gs *GameServer) handleChat(s *Session, req protocol.ChatRequest) {
	logging.Info("[чат] %s: %s", s.Name, req.Message)
	eventbus.Publish(context.Background(), eventbus.NewEnvelope(eventbus.EventChat, s.Name, req.Message))

	gs.broadcast(protocol.MsgChatBroadcast, protocol.ChatBroadcast{Sender: s.Name, Message: req.Message})
}

func (gs *GameServer) handlePlaceBlock(s *Session, req protocol.PlaceBlockRequest) {
	coords, sc := gs.record.World().Merge(req.Pos, req.Block)
	metricBlockEdits.Inc()
	eventbus.Publish(context.Background(), eventbus.NewEnvelope(eventbus.EventBlockEdit, s.Name, coords.String()))

	// Близкие клиенты применяют правку локально по подтверждению
	// физики, далёкие (и клиенты без позиции) получают полный снимок
	// правок чанка. Отправителю снимок не возвращается.
	update := protocol.ChunkUpdate{Coords: coords, Chunk: sc}
	for id, other := range gs.sessions {
		if id == s.ID() {
			continue
		}
		if other.Pos.HorizontalDistanceSquared(req.Pos) > gs.forwardRadiusSq {
			gs.sendReliable(other, protocol.MsgChunkUpdate, update)
		}
	}
}

func (gs *GameServer) handleLoadChunks(s *Session, req protocol.LoadChunksRequest) {
	w := gs.record.World()
	for _, coords := range req.Chunks {
		sc, ok := w.Chunks[coords]
		if !ok {
			continue // Чанк без правок: клиент сгенерирует его сам
		}
		gs.sendReliable(s, protocol.MsgChunkUpdate, protocol.ChunkUpdate{Coords: coords, Chunk: sc})
	}
}

func (gs *GameServer) handleMove(s *Session, req protocol.MoveRequest) {
	s.Pos = req.Pos
	gs.broadcastPlayerData(s.ID())
}

// ===== Рассылка =====

// sendReliable отправляет сообщение одной сессии; ошибка доставки
// приведёт к разрыву в транспорте, здесь достаточно залогировать
func (gs *GameServer) sendReliable(s *Session, t protocol.MsgType, payload interface{}) {
	if err := s.Conn.SendReliable(t, payload); err != nil {
		logging.Warn("Ошибка отправки %s игроку %s: %v", t, s.Name, err)
		return
	}
	metricMessagesOut.WithLabelValues(t.String()).Inc()
}

// broadcast отправляет сообщение всем сессиям
func (gs *GameServer) broadcast(t protocol.MsgType, payload interface{}) {
	for _, s := range gs.sessions {
		gs.sendReliable(s, t, payload)
	}
}

// broadcastExcept отправляет сообщение всем, кроме указанной сессии
func (gs *GameServer) broadcastExcept(exceptID uint64, t protocol.MsgType, payload interface{}) {
	for id, s := range gs.sessions {
		if id == exceptID {
			continue
		}
		gs.sendReliable(s, t, payload)
	}
}

// broadcastPlayerData собирает таблицу игроков и рассылает её
// ненадёжным каналом всем, кроме exceptID (0 — всем)
func (gs *GameServer) broadcastPlayerData(exceptID uint64) {
	table := protocol.PlayerData{Players: make(map[uint64]protocol.PlayerInfo, len(gs.sessions))}
	for id, s := range gs.sessions {
		table.Players[id] = protocol.PlayerInfo{Name: s.Name, Pos: s.Pos}
	}
	for id, s := range gs.sessions {
		if id == exceptID {
			continue
		}
		if err := s.Conn.SendUnreliable(protocol.MsgPlayerData, table); err != nil {
			continue // Потеря допустима
		}
		metricMessagesOut.WithLabelValues(protocol.MsgPlayerData.String()).Inc()
	}
}

// ===== Сохранение =====

// save синхронизирует позиции активных сессий в мир и фиксирует запись
func (gs *GameServer) save() error {
	start := time.Now()
	err := gs.record.Update(func(w *world.SavedWorld) {
		for _, s := range gs.sessions {
			w.Players[s.Name] = world.PlayerState{Pos: s.Pos, Velocity: vec.ZeroF}
		}
	})
	if err != nil {
		return err
	}
	gs.lastSave = time.Now()
	metricSaveDuration.Observe(time.Since(start).Seconds())
	eventbus.Publish(context.Background(), eventbus.NewEnvelope(eventbus.EventWorldSave, "", ""))
	logging.Info("Мир сохранён за %s", time.Since(start))
	return nil
}

// ===== Снимки для операторского API =====

// PlayerSnapshot — имя и позиция игрока для REST-панели
type PlayerSnapshot struct {
	ID   uint64    `json:"id"`
	Name string    `json:"name"`
	Pos  vec.Vec3F `json:"pos"`
}

// StatusSnapshot — сводка состояния сервера
type StatusSnapshot struct {
	Players   int       `json:"players"`
	Seed      uint32    `json:"seed"`
	StartedAt time.Time `json:"started_at"`
	LastSave  time.Time `json:"last_save"`
}

// refreshSnapshot пересобирает снимок таблицы игроков и времени
// последнего сохранения. Вызывается циклом в конце каждого шага,
// REST-обработчики читают только через снимок.
func (gs *GameServer) refreshSnapshot() {
	snap := make([]PlayerSnapshot, 0, len(gs.sessions))
	for id, s := range gs.sessions {
		snap = append(snap, PlayerSnapshot{ID: id, Name: s.Name, Pos: s.Pos})
	}
	gs.snapMu.Lock()
	gs.snapshot = snap
	gs.snapLastSave = gs.lastSave
	gs.snapMu.Unlock()
}

// Players возвращает снимок таблицы игроков
func (gs *GameServer) Players() []PlayerSnapshot {
	gs.snapMu.RLock()
	defer gs.snapMu.RUnlock()
	return gs.snapshot
}

// Status возвращает сводку состояния сервера
func (gs *GameServer) Status() StatusSnapshot {
	gs.snapMu.RLock()
	defer gs.snapMu.RUnlock()
	return StatusSnapshot{
		Players:   len(gs.snapshot),
		Seed:      gs.record.World().Seed,
		StartedAt: gs.startedAt,
		LastSave:  gs.snapLastSave,
	}
}
