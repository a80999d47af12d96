package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"
)

// Topology names the broker objects a consumer declares before reading.
type Topology struct {
	Exchange        string
	RoutingKey      string
	Queue           string
	DeadLetterQueue string
}

// BookingTopology is where booking events are published.
func BookingTopology(queue, dlq string) Topology {
	return Topology{
		Exchange:        "bookings.direct",
		RoutingKey:      "booking.created",
		Queue:           queue,
		DeadLetterQueue: dlq,
	}
}

// Handler processes one delivery and is responsible for acking it.
type Handler func(context.Context, amqp.Delivery) error

// BaseConsumer runs a fixed pool of workers over one queue.
type BaseConsumer struct {
	conn        *amqp.Connection
	topology    Topology
	prefetch    int
	workerCount int
	logger      *slog.Logger
}

func NewBaseConsumer(conn *amqp.Connection, topology Topology, prefetch, workerCount int, logger *slog.Logger) *BaseConsumer {
	if prefetch <= 0 {
		prefetch = 20
	}
	if workerCount <= 0 {
		workerCount = 2
	}
	return &BaseConsumer{
		conn:        conn,
		topology:    topology,
		prefetch:    prefetch,
		workerCount: workerCount,
		logger:      logger,
	}
}

// Start blocks until ctx is done or the broker closes the channel.
func (c *BaseConsumer) Start(ctx context.Context, handler Handler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := declare(ch, c.topology); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.topology.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.topology.Queue, err)
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	c.logger.Info("booking consumer started",
		slog.String("queue", c.topology.Queue),
		slog.String("exchange", c.topology.Exchange),
		slog.Int("workers", c.workerCount),
	)

	return c.run(ctx, deliveries, closed, handler)
}

// run feeds deliveries to the worker pool until ctx is done or closed fires,
// then waits for in-flight handlers. Handlers keep an uncancelled context so a
// delivery picked up before shutdown is still processed and acked.
func (c *BaseConsumer) run(ctx context.Context, deliveries <-chan amqp.Delivery, closed <-chan *amqp.Error, handler Handler) error {
	stop, cancel := context.WithCancel(ctx)
	defer cancel()
	handlerCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < c.workerCount; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			c.work(stop, handlerCtx, worker, deliveries, handler)
		}(i)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case amqpErr, ok := <-closed:
		if ok && amqpErr != nil {
			runErr = amqpErr
		} else {
			runErr = errors.New("channel closed")
		}
		cancel()
	}
	wg.Wait()
	return runErr
}

func (c *BaseConsumer) work(stop, handlerCtx context.Context, worker int, deliveries <-chan amqp.Delivery, handler Handler) {
	for {
		select {
		case <-stop.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				return
			}
			if err := handler(handlerCtx, msg); err != nil {
				c.logger.Error("booking handler failed",
					slog.Int("worker", worker),
					slog.Uint64("delivery_tag", msg.DeliveryTag),
					slog.Any("error", err),
				)
			}
		}
	}
}

// declare creates the dead-letter queue first so rejected messages always
// have somewhere to go.
func declare(ch *amqp.Channel, t Topology) error {
	var args amqp.Table
	if t.DeadLetterQueue != "" {
		if _, err := ch.QueueDeclare(t.DeadLetterQueue, true, false, false, false, nil); err != nil {
			return err
		}
		args = amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": t.DeadLetterQueue,
		}
	}
	if err := ch.ExchangeDeclare(t.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, args); err != nil {
		return err
	}
	return ch.QueueBind(t.Queue, t.RoutingKey, t.Exchange, false, nil)
}
