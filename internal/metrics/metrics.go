package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type tracker interface {
	TrackRequest(method string, status int, duration time.Duration)
	TrackHandoff()
	TrackCookieRewrites(count int)
	TrackLinkRewrite()
}

var Tracker tracker = &nullTracker{}

func Enable() http.Handler {
	Tracker = NewPrometheusTracker()
	return promhttp.Handler()
}

type nullTracker struct{}

func (nullTracker) TrackRequest(method string, status int, dur time.Duration) {}
func (nullTracker) TrackHandoff()                                             {}
func (nullTracker) TrackCookieRewrites(count int)                             {}
func (nullTracker) TrackLinkRewrite()                                         {}

type prometheusTracker struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	handoffs         prometheus.Counter
	cookiesRewritten prometheus.Counter
	linksRewritten   prometheus.Counter
}

func NewPrometheusTracker() *prometheusTracker {
	tracker := &prometheusTracker{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:      "http_requests_total",
				Namespace: "crumbway",
				Subsystem: "proxy",
				Help:      "HTTP requests processed, labeled by status code and method.",
			},
			[]string{"method", "status"},
		),

		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:      "http_request_duration_seconds",
				Namespace: "crumbway",
				Subsystem: "proxy",
				Help:      "Duration of HTTP requests, labeled by status code and method.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),

		handoffs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:      "cookie_handoffs_total",
				Namespace: "crumbway",
				Subsystem: "proxy",
				Help:      "Cookie handoff redirects serviced.",
			},
		),

		cookiesRewritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:      "cookies_rewritten_total",
				Namespace: "crumbway",
				Subsystem: "proxy",
				Help:      "Set-Cookie headers whose Path attribute was rewritten.",
			},
		),

		linksRewritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:      "links_rewritten_total",
				Namespace: "crumbway",
				Subsystem: "proxy",
				Help:      "Links rewritten into cookie handoff form.",
			},
		),
	}

	prometheus.MustRegister(tracker.httpRequests, tracker.httpDuration, tracker.handoffs,
		tracker.cookiesRewritten, tracker.linksRewritten)

	return tracker
}

func (p *prometheusTracker) TrackRequest(method string, status int, duration time.Duration) {
	method = normalizeMethod(method)
	statusString := strconv.Itoa(status)

	p.httpRequests.WithLabelValues(method, statusString).Inc()
	p.httpDuration.WithLabelValues(method, statusString).Observe(duration.Seconds())
}

func (p *prometheusTracker) TrackHandoff() {
	p.handoffs.Inc()
}

func (p *prometheusTracker) TrackCookieRewrites(count int) {
	if count > 0 {
		p.cookiesRewritten.Add(float64(count))
	}
}

func (p *prometheusTracker) TrackLinkRewrite() {
	p.linksRewritten.Inc()
}

// Private

func normalizeMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost,
		http.MethodPut, http.MethodPatch, http.MethodDelete,
		http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return method
	default:
		return "OTHER"
	}
}
