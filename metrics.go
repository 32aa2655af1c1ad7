package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	metricMessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_messages_received_total",
		Help: "Total reservation messages received from SQS",
	})

	metricMessagesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_messages_deleted_total",
		Help: "Total messages deleted from SQS after successful processing",
	})

	metricVisibilityExtended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_visibility_extended_total",
		Help: "Total visibility-timeout extensions applied to failed messages",
	})

	metricReceiveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_receive_errors_total",
		Help: "Total failed SQS receive calls",
	})

	metricAckErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_ack_errors_total",
		Help: "Total delete or change-visibility calls that failed after retries",
	})

	metricReservationsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_confirmed_total",
		Help: "Total reservations that decremented seat inventory",
	})

	metricReservationsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_rejected_total",
		Help: "Total reservations rejected for insufficient seats",
	})

	metricReservationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_failed_total",
		Help: "Total reservations that failed validation or store I/O",
	})

	metricSeatsReserved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seats_reserved_total",
		Help: "Total seats reserved",
	})

	metricDispatchDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reservation_dispatch_queue_depth",
		Help: "Jobs waiting in the dispatch channel",
	})

	metricQueueAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sqs_messages_available",
		Help: "ApproximateNumberOfMessages reported by SQS",
	})

	metricQueueInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sqs_messages_in_flight",
		Help: "ApproximateNumberOfMessagesNotVisible reported by SQS",
	})
)

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Serving Prometheus metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
