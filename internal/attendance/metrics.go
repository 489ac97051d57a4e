package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoattend_sessions_opened_total",
		Help: "Attendance sessions opened by teachers.",
	})
	sessionsSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoattend_sessions_superseded_total",
		Help: "Prior live sessions deactivated by a newer session for the same class.",
	})
	marksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoattend_marks_total",
		Help: "Mark attempts by outcome code (ok for success).",
	}, []string{"result"})
)

func observeMark(err error) {
	if err == nil {
		marksTotal.WithLabelValues("ok").Inc()
		return
	}
	if code, ok := CodeOf(err); ok {
		marksTotal.WithLabelValues(string(code)).Inc()
		return
	}
	marksTotal.WithLabelValues("error").Inc()
}
