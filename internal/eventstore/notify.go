package eventstore

import (
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/zitadel/logging"
)

// AMQPNotifier is the optional wake-up channel described in
// SPEC_FULL.md §4.1: after a successful Push, it publishes a tiny
// "events are waiting for instance X" ping to a fanout exchange so
// Stream(follow=true) readers wake up immediately instead of waiting
// out their poll interval. A broker outage only degrades Stream's
// latency back to polling -- it never affects correctness, since
// durability and ordering are the database's job (spec.md §1
// Non-goals: "no distributed consensus algorithm").
type AMQPNotifier struct {
	conn     *amqp.Connection
	exchange string

	mu       sync.Mutex
	waiters  map[string][]chan struct{}
}

// NewAMQPNotifier declares a fanout exchange named exchange on conn and
// returns a ready-to-use Notifier.
func NewAMQPNotifier(conn *amqp.Connection, exchange string) (*AMQPNotifier, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return nil, err
	}
	n := &AMQPNotifier{conn: conn, exchange: exchange, waiters: make(map[string][]chan struct{})}
	if err := n.consume(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *AMQPNotifier) consume() error {
	ch, err := n.conn.Channel()
	if err != nil {
		return err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, "", n.exchange, false, nil); err != nil {
		return err
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return err
	}
	go func() {
		for msg := range msgs {
			n.wake(string(msg.Body))
		}
	}()
	return nil
}

func (n *AMQPNotifier) wake(instanceID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.waiters[instanceID] {
		close(ch)
	}
	delete(n.waiters, instanceID)
}

// Notify publishes a ping for instanceID; delivery is best-effort.
func (n *AMQPNotifier) Notify(ctx context.Context, instanceID string) {
	ch, err := n.conn.Channel()
	if err != nil {
		logging.WithFields("instanceID", instanceID).WithError(err).Debug("notify channel open failed")
		return
	}
	defer ch.Close()
	if err := ch.PublishWithContext(ctx, n.exchange, "", false, false, amqp.Publishing{
		Body: []byte(instanceID),
	}); err != nil {
		logging.WithFields("instanceID", instanceID).WithError(err).Debug("notify publish failed")
	}
}

// Wait blocks until a ping for instanceID arrives or timeout elapses.
func (n *AMQPNotifier) Wait(ctx context.Context, instanceID string, timeout time.Duration) {
	ch := make(chan struct{})
	n.mu.Lock()
	n.waiters[instanceID] = append(n.waiters[instanceID], ch)
	n.mu.Unlock()

	select {
	case <-ch:
	case <-time.After(timeout):
	case <-ctx.Done():
	}
}
