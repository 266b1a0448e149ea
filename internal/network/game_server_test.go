package network

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelworld/internal/config"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/protocol"
	"github.com/annel0/voxelworld/internal/storage"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
)

func TestMain(m *testing.M) {
	logging.InitConsoleLogger()
	os.Exit(m.Run())
}

// sentMsg — перехваченное исходящее сообщение. Полезная нагрузка
// сериализуется в момент отправки, как это делает настоящий кодек:
// снимок не должен зависеть от последующих мутаций цикла.
type sentMsg struct {
	t   protocol.MsgType
	raw []byte
}

// decodeAs разбирает полезную нагрузку сообщения в типизированную структуру
func decodeAs[T any](t *testing.T, m sentMsg) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(m.raw, &out))
	return out
}

// fakeConn — подключение без транспорта: исходящие сообщения
// складываются в срезы для проверок
type fakeConn struct {
	id uint64

	mu         sync.Mutex
	reliable   []sentMsg
	unreliable []sentMsg
	closed     bool
}

func (c *fakeConn) ID() uint64 { return c.id }

func (c *fakeConn) SendReliable(t protocol.MsgType, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reliable = append(c.reliable, sentMsg{t: t, raw: raw})
	return nil
}

func (c *fakeConn) SendUnreliable(t protocol.MsgType, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unreliable = append(c.unreliable, sentMsg{t: t, raw: raw})
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "fake" }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// takeReliable возвращает накопленные надёжные сообщения и очищает буфер
func (c *fakeConn) takeReliable() []sentMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.reliable
	c.reliable = nil
	return out
}

func (c *fakeConn) takeUnreliable() []sentMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.unreliable
	c.unreliable = nil
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// only возвращает единственное сообщение данного типа
func only(t *testing.T, msgs []sentMsg, mt protocol.MsgType) sentMsg {
	t.Helper()
	var found []sentMsg
	for _, m := range msgs {
		if m.t == mt {
			found = append(found, m)
		}
	}
	require.Len(t, found, 1, "ожидалось одно сообщение %s", mt)
	return found[0]
}

func countOf(msgs []sentMsg, mt protocol.MsgType) int {
	n := 0
	for _, m := range msgs {
		if m.t == mt {
			n++
		}
	}
	return n
}

func newTestServer(t *testing.T, cfg config.ServerConfig) (*GameServer, storage.WorldRecord) {
	t.Helper()
	record, err := storage.Open("file", t.TempDir(), "test")
	require.NoError(t, err)
	return NewGameServer(record, &cfg), record
}

func connectPlayer(gs *GameServer, name string) *fakeConn {
	c := &fakeConn{id: nextConnID()}
	gs.Connect(c, name)
	gs.Step()
	return c
}

func frameOf(t *testing.T, mt protocol.MsgType, payload interface{}) *protocol.Frame {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &protocol.Frame{Type: mt, Payload: raw}
}

// moveTo доставляет датаграмму Move и прокручивает цикл
func moveTo(t *testing.T, gs *GameServer, c *fakeConn, pos vec.Vec3F) {
	t.Helper()
	gs.HandleDatagram(c.id, frameOf(t, protocol.MsgMove, protocol.MoveRequest{Pos: pos}))
	gs.Step()
}

func TestConnectFlow(t *testing.T) {
	gs, record := newTestServer(t, config.ServerConfig{})

	alice := connectPlayer(gs, "alice")

	// Первый игрок: ConnectionInfo со сторожевой позицией, без уведомлений
	msgs := alice.takeReliable()
	info := decodeAs[protocol.ConnectionInfo](t, only(t, msgs, protocol.MsgConnectionInfo))
	assert.Equal(t, record.World().Seed, info.Seed)
	assert.Equal(t, alice.id, info.ClientID)
	assert.True(t, info.Pos.IsUnset(), "Новому игроку позиция не назначается")
	assert.Zero(t, countOf(msgs, protocol.MsgPlayerConnected))

	bob := connectPlayer(gs, "bob")

	// Существующий игрок узнаёт о новом
	joined := decodeAs[protocol.PlayerConnected](t, only(t, alice.takeReliable(), protocol.MsgPlayerConnected))
	assert.Equal(t, "bob", joined.Name)

	// Новый получает ConnectionInfo, но не уведомление о себе
	msgs = bob.takeReliable()
	only(t, msgs, protocol.MsgConnectionInfo)
	assert.Zero(t, countOf(msgs, protocol.MsgPlayerConnected))

	// Таблица игроков уходит всем
	table := decodeAs[protocol.PlayerData](t, only(t, bob.takeUnreliable(), protocol.MsgPlayerData))
	assert.Len(t, table.Players, 2)
}

func TestDuplicateNameRefused(t *testing.T) {
	gs, _ := newTestServer(t, config.ServerConfig{})

	first := connectPlayer(gs, "steve")
	second := connectPlayer(gs, "steve")

	d := decodeAs[protocol.Disconnect](t, only(t, second.takeReliable(), protocol.MsgDisconnect))
	assert.Equal(t, "имя уже занято", d.Reason)
	assert.True(t, second.isClosed())

	// Первая сессия не пострадала
	assert.False(t, first.isClosed())
	assert.Len(t, gs.Players(), 1)
}

func TestServerFullRefused(t *testing.T) {
	gs, _ := newTestServer(t, config.ServerConfig{MaxPlayers: 1})

	connectPlayer(gs, "alice")
	late := connectPlayer(gs, "bob")

	d := decodeAs[protocol.Disconnect](t, only(t, late.takeReliable(), protocol.MsgDisconnect))
	assert.Equal(t, "сервер заполнен", d.Reason)
	assert.True(t, late.isClosed())
	assert.Len(t, gs.Players(), 1)
}

func TestDisconnectPersistsAndNotifies(t *testing.T) {
	gs, record := newTestServer(t, config.ServerConfig{})

	alice := connectPlayer(gs, "alice")
	bob := connectPlayer(gs, "bob")
	alice.takeReliable()

	moveTo(t, gs, bob, vec.Vec3F{X: 5, Y: 80, Z: -3})

	gs.Disconnected(bob.id, "клиент вышел")
	gs.Step()

	left := decodeAs[protocol.PlayerDisconnected](t, only(t, alice.takeReliable(), protocol.MsgPlayerDisconnected))
	assert.Equal(t, "bob", left.Name)
	assert.Equal(t, "клиент вышел", left.Reason)

	// Позиция сохранена, скорость и углы обнулены
	saved, ok := record.World().Players["bob"]
	require.True(t, ok)
	assert.Equal(t, vec.Vec3F{X: 5, Y: 80, Z: -3}, saved.Pos)
	assert.Equal(t, vec.ZeroF, saved.Velocity)
	assert.Zero(t, saved.Yaw)
	assert.Zero(t, saved.Pitch)

	// Повторное подключение возвращает сохранённую позицию
	again := connectPlayer(gs, "bob")
	info := decodeAs[protocol.ConnectionInfo](t, only(t, again.takeReliable(), protocol.MsgConnectionInfo))
	assert.Equal(t, vec.Vec3F{X: 5, Y: 80, Z: -3}, info.Pos)
}

func TestChatRebroadcast(t *testing.T) {
	gs, _ := newTestServer(t, config.ServerConfig{})

	alice := connectPlayer(gs, "alice")
	bob := connectPlayer(gs, "bob")
	alice.takeReliable()
	bob.takeReliable()

	gs.HandleFrame(alice.id, frameOf(t, protocol.MsgChat, protocol.ChatRequest{Message: "привет"}))
	gs.Step()

	// Чат уходит всем, включая отправителя
	for _, c := range []*fakeConn{alice, bob} {
		msg := decodeAs[protocol.ChatBroadcast](t, only(t, c.takeReliable(), protocol.MsgChatBroadcast))
		assert.Equal(t, "alice", msg.Sender)
		assert.Equal(t, "привет", msg.Message)
	}
}

func TestLoadChunksSendsOnlySaved(t *testing.T) {
	gs, record := newTestServer(t, config.ServerConfig{})
	record.World().Merge(vec.Vec3{X: 5, Y: 70, Z: 5}, block.StoneBlock)

	alice := connectPlayer(gs, "alice")
	alice.takeReliable()

	gs.HandleFrame(alice.id, frameOf(t, protocol.MsgLoadChunks, protocol.LoadChunksRequest{
		Chunks: []vec.Vec3{{X: 0, Z: 0}, {X: 7, Z: 7}},
	}))
	gs.Step()

	// Чанк без правок молча пропущен
	update := decodeAs[protocol.ChunkUpdate](t, only(t, alice.takeReliable(), protocol.MsgChunkUpdate))
	assert.Equal(t, vec.Vec3{X: 0, Z: 0}, update.Coords)
	assert.Equal(t, block.Stone, update.Chunk.Blocks[vec.Vec3{X: 5, Y: 70, Z: 5}].Kind)
}

func TestPlaceBlockForwardsSnapshotByDistance(t *testing.T) {
	gs, record := newTestServer(t, config.ServerConfig{ForwardRadius: 8})

	sender := connectPlayer(gs, "sender")
	near := connectPlayer(gs, "near")
	far := connectPlayer(gs, "far")
	fresh := connectPlayer(gs, "fresh") // Позиции ещё нет

	moveTo(t, gs, sender, vec.Vec3F{X: 1, Y: 70, Z: 1})
	moveTo(t, gs, near, vec.Vec3F{X: 3, Y: 70, Z: 3})
	moveTo(t, gs, far, vec.Vec3F{X: 100, Y: 70, Z: 100})
	for _, c := range []*fakeConn{sender, near, far, fresh} {
		c.takeReliable()
	}

	gs.HandleFrame(sender.id, frameOf(t, protocol.MsgPlaceBlock, protocol.PlaceBlockRequest{
		Pos:   vec.Vec3{X: 0, Y: 70, Z: 0},
		Block: block.PlankBlock,
	}))
	gs.Step()

	// Правка слита в сохранённый мир
	sc, ok := record.World().Chunks[vec.Vec3{X: 0, Z: 0}]
	require.True(t, ok)
	assert.Equal(t, block.Plank, sc.Blocks[vec.Vec3{X: 0, Y: 70, Z: 0}].Kind)
	assert.Equal(t, uint64(1), sc.Revision)

	// Отправитель и близкий игрок снимка не получают
	assert.Zero(t, countOf(sender.takeReliable(), protocol.MsgChunkUpdate))
	assert.Zero(t, countOf(near.takeReliable(), protocol.MsgChunkUpdate))

	// Далёкий и игрок без позиции получают полный снимок
	for _, c := range []*fakeConn{far, fresh} {
		update := decodeAs[protocol.ChunkUpdate](t, only(t, c.takeReliable(), protocol.MsgChunkUpdate))
		assert.Equal(t, vec.Vec3{X: 0, Z: 0}, update.Coords)
		assert.Equal(t, uint64(1), update.Chunk.Revision)
	}
}

func TestRevisionGrowsWithEachEdit(t *testing.T) {
	gs, _ := newTestServer(t, config.ServerConfig{ForwardRadius: 8})

	sender := connectPlayer(gs, "sender")
	watcher := connectPlayer(gs, "watcher")
	moveTo(t, gs, watcher, vec.Vec3F{X: 500, Y: 70, Z: 500})
	sender.takeReliable()
	watcher.takeReliable()

	for i := 0; i < 3; i++ {
		gs.HandleFrame(sender.id, frameOf(t, protocol.MsgPlaceBlock, protocol.PlaceBlockRequest{
			Pos:   vec.Vec3{X: i, Y: 70, Z: 0},
			Block: block.StoneBlock,
		}))
		gs.Step()
	}

	msgs := watcher.takeReliable()
	require.Equal(t, 3, countOf(msgs, protocol.MsgChunkUpdate))
	var prev uint64
	for _, m := range msgs {
		update := decodeAs[protocol.ChunkUpdate](t, m)
		assert.Greater(t, update.Chunk.Revision, prev, "Ревизия должна расти монотонно")
		prev = update.Chunk.Revision
	}
}

func TestMoveUpdatesPositionAndBroadcasts(t *testing.T) {
	gs, _ := newTestServer(t, config.ServerConfig{})

	alice := connectPlayer(gs, "alice")
	bob := connectPlayer(gs, "bob")
	alice.takeUnreliable()
	bob.takeUnreliable()

	moveTo(t, gs, alice, vec.Vec3F{X: 10, Y: 70, Z: 10})

	// Таблица уходит всем, кроме отправителя
	assert.Zero(t, countOf(alice.takeUnreliable(), protocol.MsgPlayerData))
	table := decodeAs[protocol.PlayerData](t, only(t, bob.takeUnreliable(), protocol.MsgPlayerData))
	assert.Equal(t, vec.Vec3F{X: 10, Y: 70, Z: 10}, table.Players[alice.id].Pos)
}

func TestMalformedPayloadDropped(t *testing.T) {
	gs, _ := newTestServer(t, config.ServerConfig{})

	alice := connectPlayer(gs, "alice")
	alice.takeReliable()

	gs.HandleFrame(alice.id, &protocol.Frame{Type: protocol.MsgPlaceBlock, Payload: []byte("мусор")})
	gs.HandleDatagram(alice.id, &protocol.Frame{Type: protocol.MsgMove, Payload: []byte("{")})
	gs.Step()

	// Сессия жива, последующие сообщения обрабатываются
	assert.False(t, alice.isClosed())
	gs.HandleFrame(alice.id, frameOf(t, protocol.MsgChat, protocol.ChatRequest{Message: "жив"}))
	gs.Step()
	only(t, alice.takeReliable(), protocol.MsgChatBroadcast)
}

func TestSecondHelloIsProtocolViolation(t *testing.T) {
	gs, _ := newTestServer(t, config.ServerConfig{})

	alice := connectPlayer(gs, "alice")
	alice.takeReliable()

	gs.HandleFrame(alice.id, frameOf(t, protocol.MsgHello, protocol.HelloRequest{Name: "alice", Protocol: protocol.ProtocolID()}))
	gs.Step()

	d := decodeAs[protocol.Disconnect](t, only(t, alice.takeReliable(), protocol.MsgDisconnect))
	assert.Equal(t, "нарушение протокола", d.Reason)
	assert.True(t, alice.isClosed())
}

func TestSaveSyncsSessionPositions(t *testing.T) {
	gs, record := newTestServer(t, config.ServerConfig{})

	alice := connectPlayer(gs, "alice")
	moveTo(t, gs, alice, vec.Vec3F{X: -7, Y: 90, Z: 2})

	done := make(chan error, 1)
	gs.saveReqs <- done
	gs.Step()
	require.NoError(t, <-done)

	saved, ok := record.World().Players["alice"]
	require.True(t, ok)
	assert.Equal(t, vec.Vec3F{X: -7, Y: 90, Z: 2}, saved.Pos)
	assert.Equal(t, vec.ZeroF, saved.Velocity)
}

func TestReliableFramesProcessedInOrder(t *testing.T) {
	gs, _ := newTestServer(t, config.ServerConfig{})

	sender := connectPlayer(gs, "sender")
	watcher := connectPlayer(gs, "watcher")
	moveTo(t, gs, watcher, vec.Vec3F{X: 500, Y: 70, Z: 500})
	sender.takeReliable()
	watcher.takeReliable()

	// Чат поставлен раньше правки: наблюдатель видит их в том же порядке
	gs.HandleFrame(sender.id, frameOf(t, protocol.MsgChat, protocol.ChatRequest{Message: "сначала"}))
	gs.HandleFrame(sender.id, frameOf(t, protocol.MsgPlaceBlock, protocol.PlaceBlockRequest{
		Pos:   vec.Vec3{X: 0, Y: 70, Z: 0},
		Block: block.StoneBlock,
	}))
	gs.Step()

	msgs := watcher.takeReliable()
	require.Len(t, msgs, 2)
	assert.Equal(t, protocol.MsgChatBroadcast, msgs[0].t)
	assert.Equal(t, protocol.MsgChunkUpdate, msgs[1].t)
}

func TestFrameForDeadSessionIgnored(t *testing.T) {
	gs, _ := newTestServer(t, config.ServerConfig{})

	alice := connectPlayer(gs, "alice")
	gs.Disconnected(alice.id, "разрыв")
	gs.Step()

	// Кадр пережил сессию: молча отбрасывается
	gs.HandleFrame(alice.id, frameOf(t, protocol.MsgChat, protocol.ChatRequest{Message: "эхо"}))
	gs.Step()
	assert.Empty(t, gs.Players())
}

// Операторский REST читает статус из другой горутины, пока цикл
// сохраняет мир. Детектор гонок не должен находить конфликтов.
func TestStatusConcurrentWithSave(t *testing.T) {
	gs, _ := newTestServer(t, config.ServerConfig{})
	connectPlayer(gs, "alice")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				gs.Status()
				gs.Players()
			}
		}
	}()

	for i := 0; i < 100; i++ {
		require.NoError(t, gs.save())
		gs.refreshSnapshot()
	}
	close(stop)
	wg.Wait()

	assert.False(t, gs.Status().LastSave.IsZero())
}

func TestRequestSaveAfterShutdownReturnsError(t *testing.T) {
	gs, _ := newTestServer(t, config.ServerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		gs.Run(ctx)
		close(loopDone)
	}()

	cancel()
	<-loopDone

	require.ErrorIs(t, gs.RequestSave(), ErrServerStopped)
}
