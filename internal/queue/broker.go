package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/bson/primitive"

	errs "service-marketplace/pkg/errors"
	"service-marketplace/pkg/logging"
	"service-marketplace/pkg/metrics"
)

const (
	exchangeName = "marketplace.jobs"
	exchangeKind = "direct"

	attemptsHeader = "x-attempts"
)

// Broker is the RabbitMQ-backed job queue. One connection, a dedicated
// confirm-mode channel for publishing, and one channel per consumer.
type Broker struct {
	url  string
	conn *amqp.Connection

	mu     sync.Mutex
	pubCh  *amqp.Channel
	closed bool

	retryBudget int
	prefetch    int

	log *logging.ComponentLogger

	mPublished *metrics.CounterVec
	mRetried   *metrics.CounterVec
	mDead      *metrics.CounterVec
}

// NewBroker dials RabbitMQ and declares the job exchange. retryBudget is
// the maximum delivery attempts before a job is dead-lettered.
func NewBroker(url string, retryBudget, prefetch int, log *logging.Logger) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errs.NewUpstream("queue.NewBroker", "rabbitmq", "dial failed", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errs.NewUpstream("queue.NewBroker", "rabbitmq", "channel open failed", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, exchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, errs.NewUpstream("queue.NewBroker", "rabbitmq", "exchange declare failed", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, errs.NewUpstream("queue.NewBroker", "rabbitmq", "confirm mode failed", err)
	}

	if retryBudget < 1 {
		retryBudget = 1
	}
	if prefetch < 1 {
		prefetch = 1
	}

	return &Broker{
		url:         url,
		conn:        conn,
		pubCh:       ch,
		retryBudget: retryBudget,
		prefetch:    prefetch,
		log:         log.WithComponent("queue"),
		mPublished:  metrics.Default.CounterVec("queue_jobs_published", "Jobs published per queue", "queue"),
		mRetried:    metrics.Default.CounterVec("queue_jobs_retried", "Job retries per queue", "queue"),
		mDead:       metrics.Default.CounterVec("queue_jobs_dead_lettered", "Dead-lettered jobs per queue", "queue"),
	}, nil
}

// DeclareQueue creates the durable queue, its dead-letter companion, and
// the exchange binding. Idempotent; call once per queue at startup.
func (b *Broker) DeclareQueue(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.pubCh.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return errs.NewUpstream("queue.DeclareQueue", "rabbitmq", fmt.Sprintf("declare %s failed", name), err)
	}
	if err := b.pubCh.QueueBind(name, name, exchangeName, false, nil); err != nil {
		return errs.NewUpstream("queue.DeclareQueue", "rabbitmq", fmt.Sprintf("bind %s failed", name), err)
	}
	dead := name + DeadSuffix
	if _, err := b.pubCh.QueueDeclare(dead, true, false, false, false, nil); err != nil {
		return errs.NewUpstream("queue.DeclareQueue", "rabbitmq", fmt.Sprintf("declare %s failed", dead), err)
	}
	if err := b.pubCh.QueueBind(dead, dead, exchangeName, false, nil); err != nil {
		return errs.NewUpstream("queue.DeclareQueue", "rabbitmq", fmt.Sprintf("bind %s failed", dead), err)
	}
	return nil
}

// Enqueue publishes a new job and waits for broker confirmation. Returns
// the generated job id.
func (b *Broker) Enqueue(ctx context.Context, queueName, entityID string) (string, error) {
	if queueName == "" {
		return "", errs.NewValidation("queue.Enqueue", "queue name is empty", nil)
	}
	if entityID == "" {
		return "", errs.NewValidation("queue.Enqueue", "entity id is empty", nil)
	}

	job := Job{
		ID:         primitive.NewObjectID().Hex(),
		Queue:      queueName,
		EntityID:   entityID,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := b.publish(ctx, queueName, job, 1); err != nil {
		return "", err
	}
	b.mPublished.With(queueName).Inc(1)
	b.log.Debug("job enqueued",
		logging.String("queue", queueName),
		logging.String("job_id", job.ID),
		logging.String("entity_id", entityID))
	return job.ID, nil
}

func (b *Broker) publish(ctx context.Context, routingKey string, job Job, attempt int) error {
	body, err := json.Marshal(job)
	if err != nil {
		return errs.NewValidation("queue.publish", "marshal job failed", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errs.NewUpstream("queue.publish", "rabbitmq", "broker closed", nil)
	}

	conf, err := b.pubCh.PublishWithDeferredConfirmWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    time.Now(),
		Headers:      amqp.Table{attemptsHeader: int32(attempt)},
		Body:         body,
	})
	if err != nil {
		return errs.NewUpstream("queue.publish", "rabbitmq", "publish failed", err)
	}
	ok, err := conf.WaitContext(ctx)
	if err != nil {
		return errs.NewUpstream("queue.publish", "rabbitmq", "confirm wait failed", err)
	}
	if !ok {
		return errs.NewUpstream("queue.publish", "rabbitmq", "publish nacked by broker", nil)
	}
	return nil
}

// QueueOptions override the broker defaults for one queue's consumers.
// Zero values fall back to the defaults given to NewBroker.
type QueueOptions struct {
	Prefetch    int
	RetryBudget int
}

func (o QueueOptions) resolve(defRetry, defPrefetch int) (retry, prefetch int) {
	retry, prefetch = defRetry, defPrefetch
	if o.RetryBudget > 0 {
		retry = o.RetryBudget
	}
	if o.Prefetch > 0 {
		prefetch = o.Prefetch
	}
	return retry, prefetch
}

// Delivery is one received job plus the controls to settle it.
type Delivery struct {
	Job Job

	b           *Broker
	d           amqp.Delivery
	retryBudget int
}

// Ack acknowledges the job as done.
func (d *Delivery) Ack() error {
	return d.d.Ack(false)
}

// budgetSpent reports whether the delivery has used up its queue's
// retry budget.
func (d *Delivery) budgetSpent() bool {
	return d.Job.Attempt >= d.retryBudget
}

// Retry republishes the job with an incremented attempt count, or
// dead-letters it when the retry budget is spent. The original delivery is
// acked either way. Returns true when the job was dead-lettered.
func (d *Delivery) Retry(ctx context.Context, reason string) (bool, error) {
	if d.budgetSpent() {
		if err := d.dead(ctx, reason); err != nil {
			return false, err
		}
		return true, d.d.Ack(false)
	}
	if err := d.b.publish(ctx, d.Job.Queue, d.Job, d.Job.Attempt+1); err != nil {
		// Leave unacked; the broker redelivers after this consumer dies.
		return false, err
	}
	d.b.mRetried.With(d.Job.Queue).Inc(1)
	return false, d.d.Ack(false)
}

// Dead moves the job straight to the dead-letter queue, skipping retries.
// Used for permanent failures where retrying cannot help.
func (d *Delivery) Dead(ctx context.Context, reason string) error {
	if err := d.dead(ctx, reason); err != nil {
		return err
	}
	return d.d.Ack(false)
}

func (d *Delivery) dead(ctx context.Context, reason string) error {
	job := d.Job
	job.Payload, _ = json.Marshal(map[string]string{"reason": reason})
	if err := d.b.publish(ctx, d.Job.Queue+DeadSuffix, job, d.Job.Attempt); err != nil {
		return err
	}
	d.b.mDead.With(d.Job.Queue).Inc(1)
	d.b.log.Warn("job dead-lettered",
		logging.String("queue", d.Job.Queue),
		logging.String("job_id", d.Job.ID),
		logging.Int("attempt", d.Job.Attempt),
		logging.String("reason", reason))
	return nil
}

// Consume opens a consumer channel on the queue and streams deliveries
// until ctx is cancelled. Messages are acked manually through Delivery.
// opts carry the queue's own prefetch and retry budget.
func (b *Broker) Consume(ctx context.Context, queueName string, opts QueueOptions) (<-chan Delivery, error) {
	retryBudget, prefetch := opts.resolve(b.retryBudget, b.prefetch)

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, errs.NewUpstream("queue.Consume", "rabbitmq", "channel open failed", err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, errs.NewUpstream("queue.Consume", "rabbitmq", "qos failed", err)
	}
	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, errs.NewUpstream("queue.Consume", "rabbitmq", fmt.Sprintf("consume %s failed", queueName), err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var job Job
				if err := json.Unmarshal(m.Body, &job); err != nil {
					b.log.Error("malformed job payload", err, logging.String("queue", queueName))
					_ = m.Reject(false)
					continue
				}
				job.Attempt = attemptsFromHeaders(m.Headers)
				select {
				case out <- Delivery{Job: job, b: b, d: m, retryBudget: retryBudget}:
				case <-ctx.Done():
					_ = m.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

// attemptsFromHeaders reads the attempt count header; absent or malformed
// headers count as the first attempt.
func attemptsFromHeaders(h amqp.Table) int {
	v, ok := h[attemptsHeader]
	if !ok {
		return 1
	}
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 1
	}
}

// Ping verifies the connection is alive.
func (b *Broker) Ping(ctx context.Context) error {
	if b.conn == nil || b.conn.IsClosed() {
		return errs.NewUpstream("queue.Ping", "rabbitmq", "connection closed", nil)
	}
	return nil
}

// Close shuts down the publish channel and connection.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.pubCh != nil {
		b.pubCh.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
