package consumer

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/feedback-processor/internal/pkg/logger"
)

// SQSAPI is the subset of the SQS client the poller uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Poller long-polls the feedback queue and hands batches to the processor.
// Messages whose IDs come back in the failed set keep their receipt handles
// and become visible again after the visibility timeout; everything else is
// deleted. Redelivery and dead-lettering are the queue's responsibility.
type Poller struct {
	client   SQSAPI
	queueURL string
	proc     *Processor
	done     chan struct{}
}

// NewPoller creates a poller for the given queue.
func NewPoller(client SQSAPI, queueURL string, proc *Processor) *Poller {
	return &Poller{
		client:   client,
		queueURL: queueURL,
		proc:     proc,
		done:     make(chan struct{}),
	}
}

// Start begins polling in a background goroutine.
func (p *Poller) Start(ctx context.Context) {
	logger.Info("feedback queue poller started", "queue", p.queueURL)
	go p.poll(ctx)
}

// Stop signals the poll loop to exit after the in-flight batch.
func (p *Poller) Stop() {
	close(p.done)
}

func (p *Poller) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		default:
		}

		out, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(p.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("queue receive failed", "error", err.Error())
			time.Sleep(5 * time.Second)
			continue
		}
		if len(out.Messages) == 0 {
			continue
		}

		records := make([]Record, 0, len(out.Messages))
		handles := make(map[string]*string, len(out.Messages))
		for _, msg := range out.Messages {
			id := aws.ToString(msg.MessageId)
			records = append(records, Record{MessageID: id, Body: []byte(aws.ToString(msg.Body))})
			handles[id] = msg.ReceiptHandle
		}

		failed := p.proc.Process(ctx, records)
		failedSet := make(map[string]bool, len(failed))
		for _, id := range failed {
			failedSet[id] = true
		}

		for id, handle := range handles {
			if failedSet[id] {
				continue
			}
			if _, err := p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(p.queueURL),
				ReceiptHandle: handle,
			}); err != nil {
				// The message redelivers and the idempotent pipeline
				// absorbs the duplicate.
				logger.Warn("queue delete failed", "message_id", id, "error", err.Error())
			}
		}
	}
}
