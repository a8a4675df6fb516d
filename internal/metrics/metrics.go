// Package metrics exposes the service's prometheus instruments. Label
// cardinality is kept to camera names, which are operator-controlled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camstream_frames_ingested_total",
		Help: "Frames accepted and durably stored, per camera",
	}, []string{"camera"})

	IngestRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camstream_ingest_rejected_total",
		Help: "Uploads rejected before storage",
	}, []string{"reason"})

	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camstream_bus_publish_failures_total",
		Help: "Frame publishes that failed after the frame was stored",
	})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "camstream_live_streams_active",
		Help: "Currently connected live stream viewers",
	})

	FramesStreamed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camstream_frames_streamed_total",
		Help: "Multipart segments delivered to viewers",
	})

	SegmentsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camstream_stream_segments_skipped_total",
		Help: "Delivered refs that could not be resolved to bytes",
	})
)
