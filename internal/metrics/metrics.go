package metrics

import (
	"sync"
	"time"

	"homeservices/internal/events"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "homeservices"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Booking status changes by source and target status.",
		},
		[]string{"from", "to"},
	)

	payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment outcomes.",
		},
		[]string{"outcome"},
	)

	outboxTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_tasks_total",
			Help:      "Outbox task results by task type.",
		},
		[]string{"task_type", "result"},
	)

	notificationsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Push deliveries by channel and result.",
		},
		[]string{"channel", "result"},
	)

	botUpdateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "telegram_bot_update_seconds",
			Help:      "Time spent processing Telegram updates by command.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingTransitions, payments, outboxTasks, notificationsDelivered, botUpdateDuration)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncOutboxTask(taskType, result string) {
	outboxTasks.WithLabelValues(taskType, result).Inc()
}

func IncDelivery(channel, result string) {
	notificationsDelivered.WithLabelValues(channel, result).Inc()
}

func ObserveBotUpdate(command string, d time.Duration) {
	botUpdateDuration.WithLabelValues(command).Observe(d.Seconds())
}

// WatchConnectedUsers exports the live websocket user count reported by fn.
func WatchConnectedUsers(fn func() int) prometheus.Collector {
	g := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connected_users",
			Help:      "Users with at least one open notification stream.",
		},
		func() float64 { return float64(fn()) },
	)
	prometheus.MustRegister(g)
	return g
}

// Subscribe counts marketplace events published on bus.
func Subscribe(bus *events.EventBus) {
	bus.SubscribeAll(events.BookingEvents, RecordEvent)
	bus.Subscribe(events.EventReviewReceived, RecordEvent)
}

// RecordEvent updates the transition and payment counters for one event.
func RecordEvent(e *events.Event) error {
	switch e.Type {
	case events.EventPaymentReceived:
		payments.WithLabelValues("completed").Inc()
		return nil
	case events.EventPaymentFailed:
		payments.WithLabelValues("failed").Inc()
		return nil
	case events.EventPaymentRefunded:
		payments.WithLabelValues("refunded").Inc()
		return nil
	case events.EventReviewReceived:
		return nil
	}

	var p events.BookingEventPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	from := p.PreviousStatus
	if from == "" {
		from = "none"
	}
	bookingTransitions.WithLabelValues(from, p.Status).Inc()
	return nil
}
