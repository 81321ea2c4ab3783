package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	mu        sync.Mutex
	declared  []string
	published []string
	consumeCh chan amqp.Delivery
	closed    bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declared = append(f.declared, name)
	if !durable {
		return amqp.Queue{}, errors.New("expected durable declare")
	}
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, key)
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	if autoAck {
		return nil, errors.New("expected manual ack")
	}
	if f.consumeCh == nil {
		f.consumeCh = make(chan amqp.Delivery)
	}
	return f.consumeCh, nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeConn struct {
	ch      *fakeChannel
	closedC chan *amqp.Error
}

func (f *fakeConn) Channel() (amqpChannel, error) { return f.ch, nil }

func (f *fakeConn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	f.closedC = receiver
	return receiver
}

func (f *fakeConn) Close() error { return nil }

func newTestClient(dial func(string) (amqpConnection, error)) *Client {
	return &Client{
		url:  "amqp://test",
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		dial: dial,
	}
}

func TestPublishDialsOnce(t *testing.T) {
	var dials atomic.Int32
	conn := &fakeConn{ch: &fakeChannel{}}
	c := newTestClient(func(string) (amqpConnection, error) {
		dials.Add(1)
		time.Sleep(20 * time.Millisecond) // let callers pile up
		return conn, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Publish(context.Background(), QueueTripCreated, []byte(`{}`)); err != nil {
				t.Errorf("publish: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := dials.Load(); got != 1 {
		t.Fatalf("expected a single dial, got %d", got)
	}
	if len(conn.ch.published) != 8 {
		t.Fatalf("expected 8 publishes, got %d", len(conn.ch.published))
	}
}

func TestPublishReconnectsAfterConnectionLoss(t *testing.T) {
	var dials atomic.Int32
	conns := []*fakeConn{{ch: &fakeChannel{}}, {ch: &fakeChannel{}}}
	c := newTestClient(func(string) (amqpConnection, error) {
		n := dials.Add(1)
		if int(n) > len(conns) {
			return nil, fmt.Errorf("unexpected dial %d", n)
		}
		return conns[n-1], nil
	})

	if err := c.Publish(context.Background(), QueueTripAccepted, []byte(`{}`)); err != nil {
		t.Fatalf("first publish: %v", err)
	}

	// Broker drops the connection.
	conns[0].closedC <- &amqp.Error{Code: 320, Reason: "connection lost"}
	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.conn == nil
	})

	if err := c.Publish(context.Background(), QueueTripAccepted, []byte(`{}`)); err != nil {
		t.Fatalf("publish after loss: %v", err)
	}
	if got := dials.Load(); got != 2 {
		t.Fatalf("expected reconnect dial, got %d dials", got)
	}
	if len(conns[1].ch.published) != 1 {
		t.Fatalf("second connection should carry the retry publish")
	}
}

func TestConnectErrorSurfaces(t *testing.T) {
	c := newTestClient(func(string) (amqpConnection, error) {
		return nil, errors.New("broker down")
	})
	if err := c.Publish(context.Background(), QueueTripStarted, nil); err == nil {
		t.Fatal("expected error when broker unreachable")
	}
}

type fakeAcker struct {
	mu     sync.Mutex
	acks   int
	nacks  []bool // requeue flags
	rejact int
}

func (f *fakeAcker) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return nil
}

func (f *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks = append(f.nacks, requeue)
	return nil
}

func (f *fakeAcker) Reject(tag uint64, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejact++
	return nil
}

func TestConsumeLoopAcksOnlyAfterHandlerSuccess(t *testing.T) {
	conn := &fakeConn{ch: &fakeChannel{}}
	c := newTestClient(func(string) (amqpConnection, error) { return conn, nil })

	var handled atomic.Int32
	err := c.Subscribe(QueueTripOffer, HandlerFunc(func(ctx context.Context, body []byte) error {
		handled.Add(1)
		switch string(body) {
		case "ok":
			return nil
		case "bad":
			return fmt.Errorf("decode: %w", ErrBadMessage)
		default:
			return errors.New("transient")
		}
	}))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	acker := &fakeAcker{}
	for _, body := range []string{"ok", "bad", "boom"} {
		conn.ch.consumeCh <- amqp.Delivery{Acknowledger: acker, Body: []byte(body)}
	}
	waitFor(t, func() bool { return handled.Load() == 3 })
	waitFor(t, func() bool {
		acker.mu.Lock()
		defer acker.mu.Unlock()
		return acker.acks == 1 && len(acker.nacks) == 2
	})

	acker.mu.Lock()
	defer acker.mu.Unlock()
	if acker.nacks[0] != false {
		t.Fatal("bad message must not be requeued")
	}
	if acker.nacks[1] != true {
		t.Fatal("transient failure must be requeued")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
