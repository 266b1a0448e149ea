package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	World    WorldConfig    `yaml:"world"`
	Storage  StorageConfig  `yaml:"storage"`
	EventBus EventBusConfig `yaml:"eventbus"`
}

type ServerConfig struct {
	Host          string `yaml:"host"`
	ReliablePort  int    `yaml:"reliable_port"`
	UDPPort       int    `yaml:"udp_port"`
	RESTPort      int    `yaml:"rest_port"`
	Transport     string `yaml:"transport"`   // tcp | kcp
	MaxPlayers    int    `yaml:"max_players"` // Предел одновременных подключений
	TickRate      int    `yaml:"tick_rate"`   // Частота фиксированного шага, Гц
	ForwardRadius int    `yaml:"forward_radius"`
	AutosaveSec   int    `yaml:"autosave_seconds"`
}

type WorldConfig struct {
	Name string `yaml:"name"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // file | badger
	Dir     string `yaml:"dir"`
}

type EventBusConfig struct {
	URL    string `yaml:"url"` // Пусто — только внутренняя шина
	Stream string `yaml:"stream"`
}

// GetHost возвращает адрес для прослушивания
func (s *ServerConfig) GetHost() string {
	if s.Host != "" {
		return s.Host
	}
	if env := os.Getenv("VOXEL_HOST"); env != "" {
		return env
	}
	return "0.0.0.0"
}

// GetReliablePort возвращает порт надёжного транспорта (TCP/KCP)
func (s *ServerConfig) GetReliablePort() int {
	return getPortWithEnvFallback(s.ReliablePort, "VOXEL_PORT", 42069)
}

// GetUDPPort возвращает порт ненадёжного канала
func (s *ServerConfig) GetUDPPort() int {
	return getPortWithEnvFallback(s.UDPPort, "VOXEL_UDP_PORT", 42070)
}

// GetRESTPort возвращает порт операторского REST API
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "VOXEL_REST_PORT", 8088)
}

// GetTransport возвращает выбранный надёжный транспорт
func (s *ServerConfig) GetTransport() string {
	switch s.Transport {
	case "", "tcp":
		return "tcp"
	case "kcp":
		return "kcp"
	default:
		return s.Transport
	}
}

// GetMaxPlayers возвращает предел одновременных подключений
func (s *ServerConfig) GetMaxPlayers() int {
	if s.MaxPlayers > 0 {
		return s.MaxPlayers
	}
	return 64
}

// GetTickRate возвращает частоту фиксированного шага
func (s *ServerConfig) GetTickRate() int {
	if s.TickRate > 0 {
		return s.TickRate
	}
	return 64
}

// GetForwardRadius возвращает радиус рассылки правок в блоках
func (s *ServerConfig) GetForwardRadius() int {
	if s.ForwardRadius > 0 {
		return s.ForwardRadius
	}
	return 8
}

// GetAutosaveSec возвращает интервал автосохранения в секундах
func (s *ServerConfig) GetAutosaveSec() int {
	if s.AutosaveSec > 0 {
		return s.AutosaveSec
	}
	return 600
}

// GetName возвращает имя мира (определяет имя файла сохранения)
func (w *WorldConfig) GetName() string {
	if w.Name != "" {
		return w.Name
	}
	return "world"
}

// GetBackend возвращает бэкенд хранения
func (s *StorageConfig) GetBackend() string {
	switch s.Backend {
	case "", "file":
		return "file"
	case "badger":
		return "badger"
	default:
		return s.Backend
	}
}

// GetDir возвращает директорию сохранений
func (s *StorageConfig) GetDir() string {
	if s.Dir != "" {
		return s.Dir
	}
	return "saves"
}

// Validate синхронно отклоняет заведомо некорректную конфигурацию
func (c *Config) Validate() error {
	switch c.Server.GetTransport() {
	case "tcp", "kcp":
	default:
		return fmt.Errorf("неизвестный транспорт %q (ожидается tcp или kcp)", c.Server.Transport)
	}
	switch c.Storage.GetBackend() {
	case "file", "badger":
	default:
		return fmt.Errorf("неизвестный бэкенд хранения %q (ожидается file или badger)", c.Storage.Backend)
	}
	if c.Server.GetReliablePort() == c.Server.GetUDPPort() {
		return fmt.Errorf("порты надёжного и ненадёжного каналов совпадают: %d", c.Server.GetUDPPort())
	}
	if c.Server.GetTickRate() > 1000 {
		return fmt.Errorf("частота тика %d выше допустимой", c.Server.GetTickRate())
	}
	if c.Server.GetMaxPlayers() > 10000 {
		return fmt.Errorf("предел игроков %d выше допустимого", c.Server.GetMaxPlayers())
	}
	return nil
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV VOXEL_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
