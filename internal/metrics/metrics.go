// Package metrics exposes engine and call-history statistics as a
// Prometheus collector. All values are gathered at scrape time from
// provider interfaces, so the engine carries no metrics plumbing.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ActiveSessionsProvider exposes the number of active call sessions.
type ActiveSessionsProvider interface {
	ActiveCount() int
}

// EngineCounters exposes the conversation engine's running totals.
type EngineCounters interface {
	MessagesTotal() uint64
	ObjectionsTotal() uint64
}

// CallStatsProvider returns call counts from the call history store.
type CallStatsProvider interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountByOutcome(ctx context.Context) (map[string]int, error)
}

// TranscriptCounter returns the total number of stored transcript lines.
type TranscriptCounter interface {
	Count(ctx context.Context) (int64, error)
}

// FeedSubscriberProvider exposes the number of connected live feed clients.
type FeedSubscriberProvider interface {
	SubscriberCount() int
}

// Collector is a prometheus.Collector that gathers call agent metrics at
// scrape time.
type Collector struct {
	sessions    ActiveSessionsProvider
	engine      EngineCounters
	calls       CallStatsProvider
	transcripts TranscriptCounter
	feed        FeedSubscriberProvider
	startTime   time.Time

	// Metric descriptors.
	activeSessionsDesc  *prometheus.Desc
	messagesDesc        *prometheus.Desc
	objectionsDesc      *prometheus.Desc
	callsByStatusDesc   *prometheus.Desc
	callsByOutcomeDesc  *prometheus.Desc
	transcriptLinesDesc *prometheus.Desc
	feedClientsDesc     *prometheus.Desc
	uptimeDesc          *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if
// unavailable.
func NewCollector(
	sessions ActiveSessionsProvider,
	engine EngineCounters,
	calls CallStatsProvider,
	transcripts TranscriptCounter,
	feed FeedSubscriberProvider,
	startTime time.Time,
) *Collector {
	return &Collector{
		sessions:    sessions,
		engine:      engine,
		calls:       calls,
		transcripts: transcripts,
		feed:        feed,
		startTime:   startTime,

		activeSessionsDesc: prometheus.NewDesc(
			"callagent_active_sessions",
			"Number of currently active call sessions",
			nil, nil,
		),
		messagesDesc: prometheus.NewDesc(
			"callagent_messages_total",
			"Total customer messages processed by the engine",
			nil, nil,
		),
		objectionsDesc: prometheus.NewDesc(
			"callagent_objections_total",
			"Total customer messages answered with an objection rebuttal",
			nil, nil,
		),
		callsByStatusDesc: prometheus.NewDesc(
			"callagent_calls",
			"Stored calls by status",
			[]string{"status"}, nil,
		),
		callsByOutcomeDesc: prometheus.NewDesc(
			"callagent_calls_finished_total",
			"Stored finished calls by outcome",
			[]string{"outcome"}, nil,
		),
		transcriptLinesDesc: prometheus.NewDesc(
			"callagent_transcript_lines",
			"Total transcript lines stored",
			nil, nil,
		),
		feedClientsDesc: prometheus.NewDesc(
			"callagent_live_feed_clients",
			"Number of connected live feed websocket clients",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"callagent_uptime_seconds",
			"Seconds since the call agent process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeSessionsDesc
	ch <- c.messagesDesc
	ch <- c.objectionsDesc
	ch <- c.callsByStatusDesc
	ch <- c.callsByOutcomeDesc
	ch <- c.transcriptLinesDesc
	ch <- c.feedClientsDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at
// scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Active sessions gauge.
	if c.sessions != nil {
		ch <- prometheus.MustNewConstMetric(
			c.activeSessionsDesc, prometheus.GaugeValue,
			float64(c.sessions.ActiveCount()),
		)
	}

	// Engine counters.
	if c.engine != nil {
		ch <- prometheus.MustNewConstMetric(
			c.messagesDesc, prometheus.CounterValue,
			float64(c.engine.MessagesTotal()),
		)
		ch <- prometheus.MustNewConstMetric(
			c.objectionsDesc, prometheus.CounterValue,
			float64(c.engine.ObjectionsTotal()),
		)
	}

	// Stored call gauges, one metric per status and outcome label.
	if c.calls != nil {
		byStatus, err := c.calls.CountByStatus(ctx)
		if err != nil {
			slog.Error("metrics: failed to count calls by status", "error", err)
		} else {
			for status, n := range byStatus {
				ch <- prometheus.MustNewConstMetric(
					c.callsByStatusDesc, prometheus.GaugeValue,
					float64(n), status,
				)
			}
		}

		byOutcome, err := c.calls.CountByOutcome(ctx)
		if err != nil {
			slog.Error("metrics: failed to count calls by outcome", "error", err)
		} else {
			for outcome, n := range byOutcome {
				ch <- prometheus.MustNewConstMetric(
					c.callsByOutcomeDesc, prometheus.CounterValue,
					float64(n), outcome,
				)
			}
		}
	}

	// Transcript line count.
	if c.transcripts != nil {
		count, err := c.transcripts.Count(ctx)
		if err != nil {
			slog.Error("metrics: failed to count transcript lines", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.transcriptLinesDesc, prometheus.GaugeValue,
				float64(count),
			)
		}
	}

	// Live feed clients.
	if c.feed != nil {
		ch <- prometheus.MustNewConstMetric(
			c.feedClientsDesc, prometheus.GaugeValue,
			float64(c.feed.SubscriberCount()),
		)
	}

	// Uptime.
	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
