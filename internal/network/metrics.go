package network

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики сетевой подсистемы. Регистрируются в реестре по умолчанию,
// отдаются REST-сервером на /metrics.
var (
	metricSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxel_sessions_active",
		Help: "Число подключённых игроков",
	})

	metricMessagesIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxel_messages_in_total",
		Help: "Принятые сообщения по типам",
	}, []string{"type"})

	metricMessagesOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxel_messages_out_total",
		Help: "Отправленные сообщения по типам",
	}, []string{"type"})

	metricMessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxel_messages_dropped_total",
		Help: "Сообщения, отброшенные из-за ошибок разбора или переполнения",
	})

	metricBlockEdits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxel_block_edits_total",
		Help: "Принятые правки блоков",
	})

	metricSaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxel_world_save_duration_seconds",
		Help:    "Длительность сохранения мира",
		Buckets: prometheus.DefBuckets,
	})
)
