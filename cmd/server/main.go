package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/annel0/voxelworld/internal/api"
	"github.com/annel0/voxelworld/internal/config"
	"github.com/annel0/voxelworld/internal/eventbus"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/network"
	"github.com/annel0/voxelworld/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "Путь к YAML конфигурации (или ENV VOXEL_CONFIG)")
	flag.Parse()

	// Инициализируем систему логирования
	if err := logging.InitLogger(); err != nil {
		log.Fatalf("Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseLogger()

	logging.Info("🎮 Запуск сервера воксельного мира...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("Ошибка загрузки конфигурации: %v", err)
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	if cfg == nil {
		cfg = &config.Config{} // Конфиг не задан: значения по умолчанию
	}

	host := cfg.Server.GetHost()
	reliableAddr := fmt.Sprintf("%s:%d", host, cfg.Server.GetReliablePort())
	udpAddr := fmt.Sprintf("%s:%d", host, cfg.Server.GetUDPPort())
	logging.Info("📡 Транспорт %s: %s, UDP: %s, REST: %d",
		cfg.Server.GetTransport(), reliableAddr, udpAddr, cfg.Server.GetRESTPort())

	// === ШИНА СОБЫТИЙ ===
	if url := cfg.EventBus.URL; url != "" {
		bus, err := eventbus.NewJetStreamBus(url, cfg.EventBus.Stream)
		if err != nil {
			logging.Error("Шина событий недоступна (%s), используется внутренняя: %v", url, err)
			eventbus.Init(eventbus.NewMemoryBus(256))
		} else {
			defer bus.Close()
			eventbus.Init(bus)
			logging.Info("✅ Шина событий подключена: %s", url)
		}
	} else {
		eventbus.Init(eventbus.NewMemoryBus(256))
	}

	// === ХРАНИЛИЩЕ МИРА ===
	record, err := storage.Open(cfg.Storage.GetBackend(), cfg.Storage.GetDir(), cfg.World.GetName())
	if err != nil {
		logging.Error("Ошибка открытия мира: %v", err)
		log.Fatalf("Ошибка открытия мира: %v", err)
	}
	logging.Info("✅ Мир %q открыт (%s), сид %d",
		cfg.World.GetName(), cfg.Storage.GetBackend(), record.World().Seed)

	// === ИГРОВОЙ ЦИКЛ ===
	gameServer := network.NewGameServer(record, &cfg.Server)

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		gameServer.Run(ctx) // Финальное сохранение происходит здесь
		close(loopDone)
	}()

	// === ТРАНСПОРТЫ ===
	udpServer, err := network.NewUDPServer(udpAddr, gameServer)
	if err != nil {
		logging.Error("Ошибка запуска UDP: %v", err)
		log.Fatalf("Ошибка запуска UDP: %v", err)
	}
	udpServer.Start()

	var stopTransport func()
	switch cfg.Server.GetTransport() {
	case "kcp":
		kcpServer, err := network.NewKCPServer(reliableAddr, gameServer, udpServer)
		if err != nil {
			logging.Error("Ошибка запуска KCP: %v", err)
			log.Fatalf("Ошибка запуска KCP: %v", err)
		}
		kcpServer.Start()
		stopTransport = kcpServer.Stop
	default:
		tcpServer, err := network.NewTCPServer(reliableAddr, gameServer, udpServer)
		if err != nil {
			logging.Error("Ошибка запуска TCP: %v", err)
			log.Fatalf("Ошибка запуска TCP: %v", err)
		}
		tcpServer.Start()
		stopTransport = tcpServer.Stop
	}

	// === REST API ===
	restServer := api.NewRestServer(cfg.Server.GetRESTPort(), gameServer, cancel)
	restServer.Start()

	logging.Info("✅ Сервер запущен и принимает подключения")

	// Ожидание сигнала завершения или остановки через REST
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
		cancel()
	case <-ctx.Done():
		logging.Info("📡 Остановка запрошена через REST API")
	}

	// Мягкая остановка: транспорты, REST, затем цикл с финальным сохранением
	stopTransport()
	udpServer.Stop()
	restServer.Stop()
	<-loopDone

	logging.Info("✅ Сервер остановлен")
}
