// Package prometheus exports streaming session metrics.
package prometheus

import (
	"sync"
	"time"

	"github.com/fwojciec/relay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "relay"

// Interface compliance check.
var _ relay.Observer = (*Observer)(nil)

// Observer records session metrics from engine updates. It is safe for
// concurrent use by several controllers.
type Observer struct {
	sessions   *prometheus.CounterVec
	active     *prometheus.GaugeVec
	textBytes  *prometheus.CounterVec
	firstToken *prometheus.HistogramVec
	duration   *prometheus.HistogramVec
	now        func() time.Time

	mu      sync.Mutex
	started map[string]*sessionState
}

type sessionState struct {
	provider  string
	start     time.Time
	streaming bool
}

// Option configures an [Observer].
type Option func(*Observer)

// WithNow sets the clock used for latency metrics.
func WithNow(now func() time.Time) Option {
	return func(o *Observer) { o.now = now }
}

// NewObserver registers the session metrics with reg.
func NewObserver(reg prometheus.Registerer, opts ...Option) *Observer {
	f := promauto.With(reg)
	o := &Observer{
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Streaming sessions by provider and terminal status",
		}, []string{"provider", "status"}),
		active: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Streaming sessions that have not terminated",
		}, []string{"provider"}),
		textBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "text_bytes_total",
			Help:      "Visible reply bytes committed by terminated sessions",
		}, []string{"provider"}),
		firstToken: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "time_to_first_content_seconds",
			Help:      "Time from session start to first visible content",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "duration_seconds",
			Help:      "Session duration by terminal status",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"provider", "status"}),
		now:     time.Now,
		started: make(map[string]*sessionState),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Observe implements relay.Observer.
func (o *Observer) Observe(u relay.Update) {
	provider := string(u.Provider)

	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case u.Status == relay.StatusLoading:
		if _, ok := o.started[u.MessageID]; ok {
			return
		}
		o.started[u.MessageID] = &sessionState{provider: provider, start: o.now()}
		o.active.WithLabelValues(provider).Inc()

	case u.Status == relay.StatusStreaming:
		st, ok := o.started[u.MessageID]
		if !ok || st.streaming {
			return
		}
		st.streaming = true
		o.firstToken.WithLabelValues(provider).Observe(o.now().Sub(st.start).Seconds())

	case u.Status.Terminal():
		status := string(u.Status)
		o.sessions.WithLabelValues(provider, status).Inc()
		o.textBytes.WithLabelValues(provider).Add(float64(len(u.Snapshot.Text)))
		if st, ok := o.started[u.MessageID]; ok {
			o.active.WithLabelValues(st.provider).Dec()
			o.duration.WithLabelValues(provider, status).Observe(o.now().Sub(st.start).Seconds())
			delete(o.started, u.MessageID)
		}
	}
}
