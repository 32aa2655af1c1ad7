package main

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// fixed-size pool of reservation workers fed from a single jobs channel
type WorkerPool struct {
	workerCount int
	jobs        chan *WorkerJob
	wg          sync.WaitGroup
	worker      *ReservationWorker
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.run(ctx, i)
	}
}

func (wp *WorkerPool) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
}

func (wp *WorkerPool) run(ctx context.Context, workerID int) {
	defer wp.wg.Done()

	log.Debug().Int("worker_id", workerID).Msg("Worker started")

	for {
		select {
		case job, ok := <-wp.jobs:
			if !ok {
				log.Debug().Int("worker_id", workerID).Msg("Worker stopping")
				return
			}

			// recovery so one bad reservation never takes the worker down
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error().
							Int("worker_id", workerID).
							Interface("panic", r).
							Msg("Worker recovered from panic")
						// message is neither deleted nor extended, SQS will redeliver
					}
				}()
				wp.handleJob(ctx, job, workerID)
			}()

		case <-ctx.Done():
			return
		}
	}
}

// handleJob runs one reservation under the shared mutex and acks the message
// afterwards. The mutex covers only the seat update: ack I/O happens after
// release so a slow SQS call never stalls the other workers.
func (wp *WorkerPool) handleJob(ctx context.Context, job *WorkerJob, workerID int) {
	rw := wp.worker

	log.Debug().
		Int("worker_id", workerID).
		Str("message_id", job.Message.ID).
		Msg("Processing reservation")

	processed, err := rw.processedStore.IsProcessed(ctx, job.Message.ID)
	if err != nil {
		// leave the message alone, SQS redelivers after the visibility timeout
		log.Error().Err(err).Str("message_id", job.Message.ID).Msg("Failed to check processed store")
		return
	}

	if processed {
		log.Info().Str("message_id", job.Message.ID).Msg("Duplicate reservation detected, skipping")
		rw.deleteMessageByReceiptHandle(job.ReceiptHandle, &job.Message.ID)
		return
	}

	success := wp.processReservation(ctx, job, workerID)

	if success {
		if err := rw.processedStore.MarkProcessed(ctx, job.Message.ID, job.Message.Type); err != nil {
			log.Error().Err(err).Str("message_id", job.Message.ID).Msg("Failed to mark reservation as processed")
		}
		rw.deleteMessageByReceiptHandle(job.ReceiptHandle, &job.Message.ID)
		log.Debug().Str("message_id", job.Message.ID).Msg("Reservation processed successfully")
	} else {
		rw.extendVisibilityByReceiptHandle(job.ReceiptHandle, &job.Message.ID, rw.config.FailureVisibilitySeconds)
		log.Warn().Str("message_id", job.Message.ID).Msg("Reservation failed, will be retried by SQS")
	}
}

// processReservation runs the handler under the shared mutex. The unlock is
// deferred so a panicking handler cannot leave the mutex held and stall the
// whole pool; the panic itself counts as a failed outcome, so the message
// takes the same visibility-extension path as a returned failure.
func (wp *WorkerPool) processReservation(ctx context.Context, job *WorkerJob, workerID int) (success bool) {
	rw := wp.worker

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Int("worker_id", workerID).
				Str("message_id", job.Message.ID).
				Interface("panic", r).
				Msg("Reservation handler panicked")
			success = false
		}
	}()

	rw.reservationMu.Lock()
	defer rw.reservationMu.Unlock()

	return rw.handleReservationMessage(ctx, job.Message)
}
