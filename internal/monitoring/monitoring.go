package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	FollowToggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "follow_toggles_total",
		Help: "Follow toggles by resulting action",
	}, []string{"action"})

	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messages_sent_total",
		Help: "Total direct messages stored",
	})

	OTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_requests_total",
		Help: "One-time code requests by outcome",
	}, []string{"outcome"})

	RealtimeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_joined_connections",
		Help: "Connections currently joined to a user channel",
	})

	RealtimeDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_deliveries_total",
		Help: "Realtime event deliveries by event and outcome",
	}, []string{"event", "outcome"})

	PushNotifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_notifications_total",
		Help: "APNs notifications by outcome",
	}, []string{"outcome"})

	AssistantRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_requests_total",
		Help: "Text-generation proxy calls by kind and outcome",
	}, []string{"kind", "outcome"})
)

func init() {
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(FollowToggles)
	prometheus.MustRegister(MessagesSent)
	prometheus.MustRegister(OTPRequests)
	prometheus.MustRegister(RealtimeConnections)
	prometheus.MustRegister(RealtimeDeliveries)
	prometheus.MustRegister(PushNotifications)
	prometheus.MustRegister(AssistantRequests)
}

// InstrumentHandler records request timing labelled by the matched chi route
// pattern, so path parameters do not explode label cardinality.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
