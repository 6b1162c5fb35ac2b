// Package metrics содержит метрики Prometheus для анализа видео.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Статусы завершения анализа
const (
	StatusSuccess     = "success"
	StatusNoEmbryos   = "no_embryos"
	StatusInvalidData = "invalid_video"
	StatusError       = "error"
)

// Collector набор метрик одного процесса со своим реестром
type Collector struct {
	registry *prometheus.Registry

	analysesTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	framesProcessed  prometheus.Counter
	detections       prometheus.Histogram
	detectionPasses  *prometheus.CounterVec
}

// New создает и регистрирует метрики
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embryo_analyses_total",
				Help: "Completed video analyses by status",
			},
			[]string{"status"},
		),
		analysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "embryo_analysis_duration_seconds",
				Help:    "Wall time of one video analysis",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
			},
		),
		framesProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "embryo_frames_processed_total",
				Help: "Sampled frames fed to the streaming accumulator",
			},
		),
		detections: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "embryo_detections",
				Help:    "Embryos found per detection frame",
				Buckets: []float64{0, 1, 2, 4, 8, 12, 16, 24, 32},
			},
		),
		detectionPasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embryo_detection_passes_total",
				Help: "Detection passes executed by label",
			},
			[]string{"pass"},
		),
	}

	c.registry.MustRegister(
		c.analysesTotal,
		c.analysisDuration,
		c.framesProcessed,
		c.detections,
		c.detectionPasses,
	)
	return c
}

// RecordAnalysis учитывает завершенный анализ
func (c *Collector) RecordAnalysis(status string, duration time.Duration) {
	c.analysesTotal.WithLabelValues(status).Inc()
	c.analysisDuration.Observe(duration.Seconds())
}

// RecordFrames учитывает обработанные кадры
func (c *Collector) RecordFrames(n int) {
	c.framesProcessed.Add(float64(n))
}

// RecordDetection учитывает результат детекции и выполненные проходы
func (c *Collector) RecordDetection(found int, passes []string) {
	c.detections.Observe(float64(found))
	for _, pass := range passes {
		c.detectionPasses.WithLabelValues(pass).Inc()
	}
}

// Handler отдает метрики в формате Prometheus
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
