package client

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/protocol"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
)

// Client — безголовый игровой клиент: соединение с сервером, локальная
// генерация мира по сиду и согласование с серверными правками.
type Client struct {
	Name string

	stream net.Conn
	udp    *net.UDPConn
	connID uint64

	seed  uint32
	spawn vec.Vec3F
	gen   *world.Generator
	store *ChunkStore

	mu     sync.RWMutex
	remote map[uint64]protocol.PlayerInfo
	pos    vec.Vec3F

	// OnChat вызывается на каждое сообщение чата (может быть nil)
	OnChat func(sender, message string)
	// OnDisconnect вызывается при принудительном отключении сервером
	OnDisconnect func(reason string)

	closeOnce sync.Once
	done      chan struct{}
}

// Dial подключается к серверу и выполняет рукопожатие. transport —
// tcp или kcp; udpAddress может быть пустым, тогда ненадёжный канал
// не используется.
func Dial(transport, address, udpAddress, name string) (*Client, error) {
	stream, err := dialStream(transport, address)
	if err != nil {
		return nil, err
	}

	if err := protocol.WriteFrame(stream, protocol.MsgHello, protocol.HelloRequest{
		Name:     name,
		Protocol: protocol.ProtocolID(),
	}); err != nil {
		stream.Close()
		return nil, err
	}

	// Первый ответ: ConnectionInfo либо Disconnect с причиной отказа
	frame, err := protocol.ReadFrame(stream)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("сервер не ответил на рукопожатие: %w", err)
	}
	switch frame.Type {
	case protocol.MsgConnectionInfo:
	case protocol.MsgDisconnect:
		var d protocol.Disconnect
		frame.Decode(&d)
		stream.Close()
		return nil, fmt.Errorf("сервер отказал в подключении: %s", d.Reason)
	default:
		stream.Close()
		return nil, fmt.Errorf("неожиданный ответ на рукопожатие: %s", frame.Type)
	}

	var info protocol.ConnectionInfo
	if err := frame.Decode(&info); err != nil {
		stream.Close()
		return nil, err
	}

	c := &Client{
		Name:   name,
		stream: stream,
		connID: info.ClientID,
		seed:   info.Seed,
		spawn:  info.Pos,
		pos:    info.Pos,
		gen:    world.NewGenerator(info.Seed),
		store:  NewChunkStore(),
		remote: make(map[uint64]protocol.PlayerInfo),
		done:   make(chan struct{}),
	}

	if udpAddress != "" {
		addr, err := net.ResolveUDPAddr("udp", udpAddress)
		if err != nil {
			stream.Close()
			return nil, fmt.Errorf("некорректный UDP адрес %s: %w", udpAddress, err)
		}
		c.udp, err = net.DialUDP("udp", nil, addr)
		if err != nil {
			stream.Close()
			return nil, err
		}
	}

	logging.Info("Подключено к %s: id=%d, сид мира %d", address, c.connID, c.seed)

	go c.readLoop()
	if c.udp != nil {
		go c.datagramLoop()
	}
	return c, nil
}

func dialStream(transport, address string) (net.Conn, error) {
	switch transport {
	case "", "tcp":
		return net.Dial("tcp", address)
	case "kcp":
		session, err := kcp.DialWithOptions(address, nil, 0, 0)
		if err != nil {
			return nil, err
		}
		session.SetStreamMode(true)
		session.SetNoDelay(1, 20, 2, 1)
		session.SetWindowSize(512, 512)
		session.SetMtu(protocol.MaxDatagramSize)
		return session, nil
	default:
		return nil, fmt.Errorf("неизвестный транспорт %q", transport)
	}
}

// ===== Состояние =====

// ID возвращает идентификатор подключения
func (c *Client) ID() uint64 { return c.connID }

// Seed возвращает сид мира, полученный от сервера
func (c *Client) Seed() uint32 { return c.seed }

// Spawn возвращает стартовую позицию. Сторожевое значение означает,
// что клиент выбирает поверхность спавн-колонны сам.
func (c *Client) Spawn() vec.Vec3F { return c.spawn }

// Store возвращает хранилище чанков
func (c *Client) Store() *ChunkStore { return c.store }

// Done закрывается при завершении соединения
func (c *Client) Done() <-chan struct{} { return c.done }

// RemotePlayers возвращает снимок таблицы удалённых игроков
func (c *Client) RemotePlayers() map[uint64]protocol.PlayerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[uint64]protocol.PlayerInfo, len(c.remote))
	for id, p := range c.remote {
		out[id] = p
	}
	return out
}

// ===== Исходящие =====

// SendChat отправляет сообщение чата
func (c *Client) SendChat(message string) error {
	return protocol.WriteFrame(c.stream, protocol.MsgChat, protocol.ChatRequest{Message: message})
}

// PlaceBlock применяет правку локально и отправляет её серверу
func (c *Client) PlaceBlock(pos vec.Vec3, b block.Block) error {
	c.store.Place(pos, b)
	return protocol.WriteFrame(c.stream, protocol.MsgPlaceBlock, protocol.PlaceBlockRequest{Pos: pos, Block: b})
}

// RequestChunks запрашивает у сервера правки набора чанков
func (c *Client) RequestChunks(coords ...vec.Vec3) error {
	return protocol.WriteFrame(c.stream, protocol.MsgLoadChunks, protocol.LoadChunksRequest{Chunks: coords})
}

// Move отправляет позицию ненадёжным каналом. Первая же датаграмма
// сообщает серверу обратный адрес клиента.
func (c *Client) Move(pos vec.Vec3F) error {
	c.mu.Lock()
	c.pos = pos
	c.mu.Unlock()

	if c.udp == nil {
		return nil
	}
	packet, err := protocol.EncodeDatagram(c.connID, protocol.MsgMove, protocol.MoveRequest{Pos: pos})
	if err != nil {
		return err
	}
	_, err = c.udp.Write(packet)
	return err
}

// EnsureChunk запускает фоновую генерацию чанка, если он ещё не
// загружен и не генерируется, и запрашивает его правки у сервера
func (c *Client) EnsureChunk(coords vec.Vec3) {
	if !c.store.BeginLoad(coords) {
		return
	}
	if err := c.RequestChunks(coords); err != nil {
		logging.Warn("Запрос правок чанка %s не отправлен: %v", coords, err)
	}
	go func() {
		c.store.Deliver(c.gen.GenerateChunk(coords))
	}()
}

// Close закрывает соединение
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.udp != nil {
			c.udp.Close()
		}
		c.stream.Close()
	})
	return nil
}

// ===== Входящие =====

func (c *Client) readLoop() {
	defer c.Close()

	for {
		frame, err := protocol.ReadFrame(c.stream)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logging.Info("Соединение с сервером потеряно: %v", err)
			}
			return
		}
		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame *protocol.Frame) {
	switch frame.Type {
	case protocol.MsgChatBroadcast:
		var msg protocol.ChatBroadcast
		if frame.Decode(&msg) != nil {
			return
		}
		if c.OnChat != nil {
			c.OnChat(msg.Sender, msg.Message)
		} else {
			logging.Info("[чат] %s: %s", msg.Sender, msg.Message)
		}

	case protocol.MsgChunkUpdate:
		var update protocol.ChunkUpdate
		if frame.Decode(&update) != nil || update.Chunk == nil {
			return
		}
		c.store.ApplyUpdate(update.Coords, update.Chunk)

	case protocol.MsgPlayerConnected:
		var ev protocol.PlayerConnected
		if frame.Decode(&ev) != nil {
			return
		}
		logging.Info("Игрок %s подключился", ev.Name)

	case protocol.MsgPlayerDisconnected:
		var ev protocol.PlayerDisconnected
		if frame.Decode(&ev) != nil {
			return
		}
		logging.Info("Игрок %s отключился: %s", ev.Name, ev.Reason)
		c.forgetPlayer(ev.Name)

	case protocol.MsgDisconnect:
		var d protocol.Disconnect
		frame.Decode(&d)
		logging.Warn("Сервер разорвал соединение: %s", d.Reason)
		if c.OnDisconnect != nil {
			c.OnDisconnect(d.Reason)
		}
		c.Close()

	default:
		logging.Debug("Неожиданный тип %s от сервера", frame.Type)
	}
}

func (c *Client) datagramLoop() {
	buffer := make([]byte, protocol.MaxDatagramSize)

	for {
		n, err := c.udp.Read(buffer)
		if err != nil {
			return
		}
		_, frame, err := protocol.DecodeDatagram(buffer[:n])
		if err != nil || frame.Type != protocol.MsgPlayerData {
			continue
		}
		var table protocol.PlayerData
		if frame.Decode(&table) != nil {
			continue
		}

		c.mu.Lock()
		c.remote = table.Players
		delete(c.remote, c.connID) // Собственная запись не нужна
		c.mu.Unlock()
	}
}

// forgetPlayer убирает игрока из таблицы по имени
func (c *Client) forgetPlayer(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.remote {
		if p.Name == name {
			delete(c.remote, id)
		}
	}
}
