package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/annel0/voxelworld/internal/client"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
)

// Радиус предзагрузки чанков вокруг игрока
const viewRadius = 2

func main() {
	transport := flag.String("transport", "tcp", "Надёжный транспорт: tcp или kcp")
	server := flag.String("server", "127.0.0.1:42069", "Адрес сервера")
	udp := flag.String("udp", "127.0.0.1:42070", "Адрес ненадёжного канала")
	name := flag.String("name", "player", "Имя игрока")
	flag.Parse()

	logging.InitConsoleLogger()

	c, err := client.Dial(*transport, *server, *udp, *name)
	if err != nil {
		log.Fatalf("Подключение не удалось: %v", err)
	}
	defer c.Close()

	c.OnChat = func(sender, message string) {
		fmt.Printf("<%s> %s\n", sender, message)
	}
	c.OnDisconnect = func(reason string) {
		fmt.Printf("Отключено сервером: %s\n", reason)
	}

	// Спавн: сохранённая позиция либо поверхность спавн-колонны
	pos := c.Spawn()
	if pos.IsUnset() {
		surface, _ := world.NewGenerator(c.Seed()).TerrainAt(0, 0)
		pos = vec.Vec3F{X: 0.5, Y: float64(surface + 2), Z: 0.5}
	}
	if err := c.Move(pos); err != nil {
		logging.Warn("Стартовая позиция не отправлена: %v", err)
	}

	// Предзагрузка области вокруг спавна
	center := world.ChunkCoords(pos.ToVec3())
	for dx := -viewRadius; dx <= viewRadius; dx++ {
		for dz := -viewRadius; dz <= viewRadius; dz++ {
			c.EnsureChunk(center.Add(vec.Vec3{X: dx, Z: dz}))
		}
	}

	// Фоновое впитывание сгенерированных чанков
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-ticker.C:
				c.Store().Absorb()
			}
		}
	}()

	fmt.Printf("Подключено как %s. Сообщения уходят в чат, /quit — выход.\n", *name)

	// Чат-цикл по stdin
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "/quit" {
				c.Close()
				return
			}
			if line == "" {
				continue
			}
			if err := c.SendChat(line); err != nil {
				fmt.Printf("Сообщение не отправлено: %v\n", err)
				return
			}
		}
	}()

	<-c.Done()
}
