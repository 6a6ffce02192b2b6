package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var requestLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:      "request_latency",
		Subsystem: "tidemodel",
		Help:      "HTTP request latencies in seconds.",
		Buckets:   []float64{0.001, 0.01, 0.1, 0.2, 0.4, 0.8, 1.0, 2.0, 4.0, 8.0, 16.0, 32.0},
	},
	[]string{"verb", "path", "code"},
)

func init() {
	prometheus.MustRegister(
		requestLatency,
	)
}

// ObserveRequestLatency records one served request in the latency
// histogram.
func ObserveRequestLatency(verb, path, code string, latency float64) {
	requestLatency.With(prometheus.Labels{
		"code": code,
		"verb": verb,
		"path": path,
	}).Observe(latency)
}

// LatencyMiddleware observes the latency of every request. Panics are
// reported as 500 errors and re-thrown.
func LatencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := time.Now()
		verb := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		defer func() {
			if err := recover(); err != nil {
				ObserveRequestLatency(verb, path, "500", time.Since(t).Seconds())
				panic(err)
			}
			code := strconv.Itoa(c.Writer.Status())
			ObserveRequestLatency(verb, path, code, time.Since(t).Seconds())
		}()

		c.Next()
	}
}
