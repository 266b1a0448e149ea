package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// recentCapacity — размер кольца последних сообщений для панели оператора
const recentCapacity = 256

// Logger пишет в консоль и файл и хранит кольцо последних сообщений
type Logger struct {
	consoleLogger *log.Logger
	fileLogger    *log.Logger
	file          *os.File

	mu     sync.Mutex
	recent []string
}

// Глобальный экземпляр логгера
var globalLogger *Logger

// InitLogger инициализирует систему логирования: консоль плюс файл
// logs/server_<метка времени>.log
func InitLogger() error {
	if err := os.MkdirAll("logs", 0755); err != nil {
		return fmt.Errorf("ошибка создания директории logs: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join("logs", fmt.Sprintf("server_%s.log", timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	globalLogger = &Logger{
		consoleLogger: log.New(os.Stdout, "", log.LstdFlags),
		fileLogger:    log.New(file, "", log.LstdFlags),
		file:          file,
	}
	return nil
}

// InitConsoleLogger инициализирует логирование только в консоль.
// Используется клиентом и тестами.
func InitConsoleLogger() {
	globalLogger = &Logger{
		consoleLogger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

// CloseLogger закрывает систему логирования
func CloseLogger() {
	if globalLogger != nil && globalLogger.file != nil {
		globalLogger.file.Close()
	}
}

// Recent возвращает копию кольца последних сообщений
func Recent() []string {
	if globalLogger == nil {
		return nil
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	return append([]string(nil), globalLogger.recent...)
}

// Debug логирует сообщение уровня DEBUG
func Debug(format string, args ...interface{}) {
	logMessage(DEBUG, format, args...)
}

// Info логирует сообщение уровня INFO
func Info(format string, args ...interface{}) {
	logMessage(INFO, format, args...)
}

// Warn логирует сообщение уровня WARN
func Warn(format string, args ...interface{}) {
	logMessage(WARN, format, args...)
}

// Error логирует сообщение уровня ERROR
func Error(format string, args ...interface{}) {
	logMessage(ERROR, format, args...)
}

// logMessage внутренняя функция для логирования
func logMessage(level LogLevel, format string, args ...interface{}) {
	if globalLogger == nil {
		return
	}

	message := fmt.Sprintf("[%s] %s", level.String(), fmt.Sprintf(format, args...))

	if globalLogger.fileLogger != nil {
		globalLogger.fileLogger.Println(message)
	}

	// В консоль только INFO и выше
	if level >= INFO {
		globalLogger.consoleLogger.Println(message)
	}

	globalLogger.mu.Lock()
	if len(globalLogger.recent) == recentCapacity {
		globalLogger.recent = globalLogger.recent[1:]
	}
	globalLogger.recent = append(globalLogger.recent,
		time.Now().Format("[15:04:05] ")+message)
	globalLogger.mu.Unlock()
}
