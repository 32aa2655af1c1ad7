package main

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// handleReservationMessage applies one seat reservation. Callers must hold
// reservationMu: the decrement below is the critical section this process
// serializes, and nothing else may run it concurrently.
func (rw *ReservationWorker) handleReservationMessage(ctx context.Context, msg *Message) bool {
	startTime := time.Now()
	rl := log.With().Str("handler", "reservation").Str("message_id", msg.ID).Logger()

	defer func() {
		duration := time.Since(startTime)
		rl.Debug().Dur("duration", duration).Msg("Reservation processing complete")
	}()

	eventID, ok := msg.Data["event_id"].(string)
	if !ok {
		rl.Error().Interface("data", msg.Data).Msg("Invalid reservation message: missing event_id")
		metricReservationsFailed.Inc()
		return false
	}

	userID, ok := msg.Data["user_id"].(string)
	if !ok {
		rl.Error().Interface("data", msg.Data).Msg("Invalid reservation message: missing user_id")
		metricReservationsFailed.Inc()
		return false
	}

	// JSON numbers decode as float64
	seatsF, ok := msg.Data["seats"].(float64)
	seats := int(seatsF)
	if !ok || seatsF != math.Trunc(seatsF) || seats < 1 {
		rl.Error().Interface("data", msg.Data).Msg("Invalid reservation message: seats must be a positive integer")
		metricReservationsFailed.Inc()
		return false
	}

	processingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	reserved, err := rw.db.ReserveSeats(processingCtx, eventID, seats)
	if err != nil {
		rl.Error().Err(err).Str("event_id", eventID).Msg("Failed to update seat inventory")
		metricReservationsFailed.Inc()
		return false
	}

	if !reserved {
		// sold out or not enough seats left; the message goes back to the
		// queue and keeps retrying, there is no terminal rejection path
		rl.Warn().
			Str("event_id", eventID).
			Str("user_id", userID).
			Int("seats", seats).
			Msg("Not enough seats available")
		metricReservationsRejected.Inc()
		return false
	}

	err = rw.db.CreateReservationLog(processingCtx, CreateReservationLogParams{
		MessageID: msg.ID,
		EventID:   eventID,
		UserID:    userID,
		Seats:     seats,
		Status:    "reserved",
		CreatedAt: time.Now(),
	})

	if err != nil {
		rl.Error().Err(err).Msg("Failed to save reservation log")
		metricReservationsFailed.Inc()
		return false
	}

	metricReservationsConfirmed.Inc()
	metricSeatsReserved.Add(float64(seats))

	if rw.quiet {
		rl.Debug().Str("event_id", eventID).Str("user_id", userID).Int("seats", seats).Msg("Seats reserved")
	} else {
		rl.Info().Str("event_id", eventID).Str("user_id", userID).Int("seats", seats).Msg("Seats reserved")
	}
	return true
}
