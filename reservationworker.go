package main

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// ReservationWorker owns the receive loop, the worker pool and the single
// mutex that serializes seat updates. One process instance owns the mutex;
// running several instances against the same events table voids the
// serialization guarantee.
//
// There is no dead-letter handling here: a reservation that keeps failing is
// redelivered by SQS until it succeeds or a DLQ policy on the queue itself
// diverts it.
type ReservationWorker struct {
	config         WorkerConfig
	sqsClient      SQSClientInterface
	db             DatabaseInterface
	processedStore ProcessedStore
	pool           *WorkerPool
	reservationMu  sync.Mutex // serializes every seat update across the pool
	ctx            context.Context
	cancel         context.CancelFunc
	pollDone       chan struct{}
	quiet          bool // only logs stats and metrics

	receiveErrorPause time.Duration
}

func NewReservationWorker(awsConfig aws.Config, config WorkerConfig, db DatabaseInterface, processedStore ProcessedStore, quiet bool) (*ReservationWorker, error) {
	ctx, cancel := context.WithCancel(context.Background())

	worker := &ReservationWorker{
		config:            config,
		sqsClient:         sqs.NewFromConfig(awsConfig),
		db:                db,
		processedStore:    processedStore,
		ctx:               ctx,
		cancel:            cancel,
		pollDone:          make(chan struct{}),
		quiet:             quiet,
		receiveErrorPause: 5 * time.Second,
	}

	worker.pool = &WorkerPool{
		workerCount: config.WorkerCount,
		jobs:        make(chan *WorkerJob, config.WorkerCount*2),
		worker:      worker,
	}

	return worker, nil
}

func (rw *ReservationWorker) Start() {
	log.Info().Int("workers", rw.pool.workerCount).Msg("Starting worker pool")
	rw.pool.Start(rw.ctx)

	go rw.monitorWorkerPool()
	go rw.monitorQueueStats()
	go rw.cleanupProcessedStore()

	rw.poll()
	close(rw.pollDone)
}

func (rw *ReservationWorker) Stop() {
	log.Info().Msg("Stopping reservation worker")
	rw.cancel()

	// the jobs channel is only closed once the poll loop can no longer push
	<-rw.pollDone
	rw.pool.Stop()

	if err := rw.processedStore.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close processed store")
	}
}

func (rw *ReservationWorker) cleanupProcessedStore() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := rw.processedStore.Cleanup(rw.ctx, 7*24*time.Hour); err != nil {
				log.Error().Err(err).Msg("Failed to cleanup processed store")
			} else {
				log.Debug().Msg("Cleaned up old processed reservations")
			}
		case <-rw.ctx.Done():
			return
		}
	}
}

func (rw *ReservationWorker) monitorWorkerPool() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			queueDepth := len(rw.pool.jobs)
			queueCapacity := cap(rw.pool.jobs)
			utilization := float64(queueDepth) / float64(queueCapacity) * 100

			metricDispatchDepth.Set(float64(queueDepth))

			log.Info().
				Int("workers", rw.pool.workerCount).
				Int("queue_depth", queueDepth).
				Int("queue_capacity", queueCapacity).
				Float64("utilization_pct", utilization).
				Msg("Worker pool metrics")

			if utilization > 80 {
				log.Warn().
					Float64("utilization_pct", utilization).
					Msg("Worker pool utilization high - receive loop will block on enqueue")
			}
		case <-rw.ctx.Done():
			return
		}
	}
}

func (rw *ReservationWorker) monitorQueueStats() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rw.logQueueStats()
		case <-rw.ctx.Done():
			return
		}
	}
}

func (rw *ReservationWorker) logQueueStats() {
	result, err := rw.sqsClient.GetQueueAttributes(rw.ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(rw.config.QueueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
			types.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
			types.QueueAttributeNameApproximateNumberOfMessagesDelayed,
		},
	})

	if err != nil {
		if rw.ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Msg("Failed to fetch queue stats")
		return
	}

	available := result.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	inFlight := result.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible)]
	delayed := result.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessagesDelayed)]

	if n, err := strconv.ParseFloat(available, 64); err == nil {
		metricQueueAvailable.Set(n)
	}
	if n, err := strconv.ParseFloat(inFlight, 64); err == nil {
		metricQueueInFlight.Set(n)
	}

	log.Info().
		Str("available", available).
		Str("in_flight", inFlight).
		Str("delayed", delayed).
		Msg("SQS queue stats")
}

// poll long-polls SQS until the context is cancelled. A failed receive is
// logged and retried after a pause; it never terminates the loop.
func (rw *ReservationWorker) poll() {
	for {
		select {
		case <-rw.ctx.Done():
			return
		default:
		}

		result, err := rw.sqsClient.ReceiveMessage(rw.ctx, &sqs.ReceiveMessageInput{
			QueueUrl:              aws.String(rw.config.QueueURL),
			MaxNumberOfMessages:   rw.config.PollBatchSize,
			WaitTimeSeconds:       rw.config.PollWaitSeconds, // Long polling
			MessageAttributeNames: []string{"All"},
		})

		if err != nil {
			if rw.ctx.Err() != nil {
				// cancelled mid-receive, not a failure
				return
			}
			log.Error().Err(err).Msg("Failed to receive messages from SQS")
			metricReceiveErrors.Inc()
			select {
			case <-time.After(rw.receiveErrorPause):
			case <-rw.ctx.Done():
				return
			}
			continue
		}

		if len(result.Messages) == 0 {
			continue
		}

		log.Debug().Int("count", len(result.Messages)).Msg("Received messages from SQS")
		metricMessagesReceived.Add(float64(len(result.Messages)))

		for _, sqsMsg := range result.Messages {
			if !rw.enqueueMessage(sqsMsg) {
				return
			}
		}
	}
}

// enqueueMessage parses one SQS message and hands it to the pool. The push
// blocks when the pool is saturated so backpressure lands on the receive
// rate rather than on SQS. Returns false only on cancellation.
func (rw *ReservationWorker) enqueueMessage(sqsMsg types.Message) bool {
	var msg Message
	if err := json.Unmarshal([]byte(*sqsMsg.Body), &msg); err != nil {
		// a body that never parses would redeliver forever, drop it
		log.Error().Err(err).Msg("Failed to parse reservation message")
		rw.deleteMessageByReceiptHandle(sqsMsg.ReceiptHandle, sqsMsg.MessageId)
		return true
	}

	job := &WorkerJob{
		Message:       &msg,
		ReceiptHandle: sqsMsg.ReceiptHandle,
	}

	select {
	case rw.pool.jobs <- job:
		// worker will ack after processing
		log.Debug().Str("message_id", msg.ID).Msg("Reservation queued for processing")
		return true
	case <-rw.ctx.Done():
		// not yet pushed, SQS will redeliver after the visibility timeout
		return false
	}
}

func (rw *ReservationWorker) deleteMessageByReceiptHandle(receiptHandle *string, messageID *string) {
	err := backoff.Retry(func() error {
		_, err := rw.sqsClient.DeleteMessage(rw.ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(rw.config.QueueURL),
			ReceiptHandle: receiptHandle,
		})
		return err
	}, rw.ackBackoff())

	if err != nil {
		if rw.ctx.Err() != nil {
			return
		}
		// left to the queue's own visibility timeout
		log.Error().Str("message_id", stringOrEmpty(messageID)).Err(err).Msg("Failed to delete message from SQS")
		metricAckErrors.Inc()
	} else {
		log.Debug().Str("message_id", stringOrEmpty(messageID)).Msg("Message deleted from SQS")
		metricMessagesDeleted.Inc()
	}
}

func (rw *ReservationWorker) extendVisibilityByReceiptHandle(receiptHandle *string, messageID *string, seconds int32) {
	err := backoff.Retry(func() error {
		_, err := rw.sqsClient.ChangeMessageVisibility(rw.ctx, &sqs.ChangeMessageVisibilityInput{
			QueueUrl:          aws.String(rw.config.QueueURL),
			ReceiptHandle:     receiptHandle,
			VisibilityTimeout: seconds,
		})
		return err
	}, rw.ackBackoff())

	if err != nil {
		if rw.ctx.Err() != nil {
			return
		}
		log.Error().Str("message_id", stringOrEmpty(messageID)).Err(err).Msg("Failed to extend visibility timeout")
		metricAckErrors.Inc()
	} else {
		log.Debug().Str("message_id", stringOrEmpty(messageID)).Int32("seconds", seconds).Msg("Extended message visibility timeout")
		metricVisibilityExtended.Inc()
	}
}

// short bounded retry for ack calls, the message's fate falls back to the
// queue's visibility timeout once it is exhausted
func (rw *ReservationWorker) ackBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, 3), rw.ctx)
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
