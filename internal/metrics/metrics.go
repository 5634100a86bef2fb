// Package metrics exposes connection health as Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glizzus/murmur/internal/event"
)

const namespace = "murmur"

// Metrics holds every collector the client reports.
type Metrics struct {
	PacketsSent     *prometheus.CounterVec
	PacketsReceived *prometheus.CounterVec
	PacketsDropped  *prometheus.CounterVec

	CryptPackets  *prometheus.GaugeVec
	PingAverage   *prometheus.GaugeVec
	PingDeviation *prometheus.GaugeVec
	PingPackets   *prometheus.GaugeVec
	Tunneling     prometheus.Gauge

	Users       prometheus.Gauge
	Connected   prometheus.Gauge
	Events      *prometheus.CounterVec
	Disconnects *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Voice and ping packets sent, by transport and kind",
		}, []string{"transport", "kind"}),

		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Voice and ping packets received, by transport and kind",
		}, []string{"transport", "kind"}),

		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Inbound packets discarded, by reason",
		}, []string{"reason"}),

		CryptPackets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "crypt_packets",
			Help:      "Cipher counters as last reported to the server",
		}, []string{"result"}),

		PingAverage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ping_average_milliseconds",
			Help:      "Mean round trip time, by transport",
		}, []string{"transport"}),

		PingDeviation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ping_deviation",
			Help:      "Round trip deviation as reported to the server, by transport",
		}, []string{"transport"}),

		PingPackets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ping_packets",
			Help:      "Pongs received, by transport",
		}, []string{"transport"}),

		Tunneling: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tunneling",
			Help:      "1 while voice is carried over the control connection",
		}),

		Users: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users",
			Help:      "Users currently connected to the server",
		}),

		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the control connection is up",
		}),

		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Client events published, by type",
		}, []string{"type"}),

		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Connections ended, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PacketsSent,
		m.PacketsReceived,
		m.PacketsDropped,
		m.CryptPackets,
		m.PingAverage,
		m.PingDeviation,
		m.PingPackets,
		m.Tunneling,
		m.Users,
		m.Connected,
		m.Events,
		m.Disconnects,
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
	}
	return nil
}

// Observe updates the collectors from a client event. Subscribe it to the
// client's bus.
func (m *Metrics) Observe(e event.Event) {
	m.Events.WithLabelValues(eventName(e)).Inc()

	switch e := e.(type) {
	case event.Connected:
		m.Connected.Set(1)
	case event.Disconnected:
		m.Connected.Set(0)
		m.Users.Set(0)
		m.Disconnects.WithLabelValues(e.Reason).Inc()
	case event.UserJoined:
		m.Users.Inc()
	case event.UserLeft:
		m.Users.Dec()
	case event.ModeChanged:
		m.Tunneling.Set(boolGauge(e.Tunneling))
	case event.Stats:
		m.CryptPackets.WithLabelValues("good").Set(float64(e.Crypt.Good))
		m.CryptPackets.WithLabelValues("late").Set(float64(e.Crypt.Late))
		m.CryptPackets.WithLabelValues("lost").Set(float64(e.Crypt.Lost))
		m.CryptPackets.WithLabelValues("resync").Set(float64(e.Crypt.Resync))

		m.PingAverage.WithLabelValues("tcp").Set(e.TCP.Average)
		m.PingAverage.WithLabelValues("udp").Set(e.UDP.Average)
		m.PingDeviation.WithLabelValues("tcp").Set(e.TCP.Deviation)
		m.PingDeviation.WithLabelValues("udp").Set(e.UDP.Deviation)
		m.PingPackets.WithLabelValues("tcp").Set(float64(e.TCP.Packets))
		m.PingPackets.WithLabelValues("udp").Set(float64(e.UDP.Packets))
		m.Tunneling.Set(boolGauge(e.Tunneling))
	}
}

func eventName(e event.Event) string {
	t := reflect.TypeOf(e)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve exposes gatherer on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	}
}
