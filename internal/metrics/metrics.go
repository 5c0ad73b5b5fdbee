// Package metrics exposes Prometheus collectors for the conversation client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dialogue service metrics
	DialogueRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sherpa_dialogue_requests_total",
			Help: "Requests sent to the dialogue service",
		},
		[]string{"outcome"}, // "ok", "network", "status", "decode"
	)

	DialogueDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sherpa_dialogue_request_duration_seconds",
			Help:    "Dialogue service round trip duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	ContactSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sherpa_contact_submissions_total",
			Help: "Contact form submissions",
		},
		[]string{"outcome"},
	)

	// Conversation metrics
	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sherpa_messages_appended_total",
			Help: "Messages appended to the conversation history",
		},
		[]string{"sender", "kind"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sherpa_request_queue_depth",
			Help: "Jobs waiting behind the in-flight request",
		},
	)

	Resets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sherpa_conversation_resets_total",
			Help: "Conversation resets",
		},
	)

	// Voice metrics
	ListeningSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sherpa_listening_sessions_total",
			Help: "Speech recognition sessions by how they ended",
		},
		[]string{"result"}, // "transcript", "empty", "error", "aborted"
	)

	Utterances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sherpa_utterances_total",
			Help: "Speech synthesis utterances by how they ended",
		},
		[]string{"result"}, // "ended", "error", "cancelled"
	)
)
