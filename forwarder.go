package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nsqio/go-nsq"
	"i4.energy/across/espgw/modem"
)

const forwardQueueLen = 64

// Publisher is the part of *nsq.Producer the forwarder uses
type Publisher interface {
	Publish(topic string, body []byte) error
	Stop()
}

// inboundMessage is the body published for every chunk of inbound data
type inboundMessage struct {
	Conn       int       `json:"conn"`
	Data       []byte    `json:"data"`
	ReceivedAt time.Time `json:"received_at"`
}

// Forwarder publishes inbound data to NSQ from its own goroutine, so the
// modem's read loop never waits on the network. Without a producer the
// data is only logged.
type Forwarder struct {
	producer Publisher
	topic    string
	logger   *slog.Logger
	queue    chan inboundMessage
	dropped  atomic.Int64
}

func NewForwarder(producer Publisher, topic string, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		producer: producer,
		topic:    topic,
		logger:   logger,
		queue:    make(chan inboundMessage, forwardQueueLen),
	}
}

// DialNSQ creates a producer for the nsqd at addr and checks that it is
// reachable.
func DialNSQ(addr string, logger *slog.Logger) (*nsq.Producer, error) {
	cfg := nsq.NewConfig()
	p, err := nsq.NewProducer(addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("create nsq producer: %w", err)
	}
	p.SetLogger(nsqLogger{logger}, nsq.LogLevelWarning)
	if err := p.Ping(); err != nil {
		p.Stop()
		return nil, fmt.Errorf("ping nsqd %s: %w", addr, err)
	}
	return p, nil
}

// Enqueue queues a copy of data. It never blocks; when the queue is full
// the chunk is dropped.
func (f *Forwarder) Enqueue(conn int, data []byte) {
	msg := inboundMessage{
		Conn:       conn,
		Data:       append([]byte(nil), data...),
		ReceivedAt: time.Now(),
	}
	select {
	case f.queue <- msg:
	default:
		f.dropped.Add(1)
		f.logger.Warn("forward queue full, dropping inbound data", "conn", conn, "bytes", len(data))
	}
}

// Run publishes queued data until ctx is done, then stops the producer.
func (f *Forwarder) Run(ctx context.Context) {
	defer func() {
		if f.producer != nil {
			f.producer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-f.queue:
			f.publish(msg)
		}
	}
}

func (f *Forwarder) publish(msg inboundMessage) {
	f.logger.Info("inbound data", "conn", msg.Conn, "bytes", len(msg.Data))
	if f.producer == nil {
		return
	}

	body, err := json.Marshal(msg)
	if err != nil {
		f.logger.Error("Failed to encode inbound data", "error", err)
		return
	}
	if err := f.producer.Publish(f.topic, body); err != nil {
		f.logger.Error("Failed to publish inbound data", "error", err, "topic", f.topic)
	}
}

// Inbox is the modem's data handler. Payload chunks are taken out of the
// modem by swapping in a spare buffer; passthrough bytes are drained from
// the ring.
type Inbox struct {
	modem   atomic.Pointer[modem.Modem]
	spare   []byte
	forward func(conn int, data []byte)
}

func NewInbox(bufSize int, forward func(conn int, data []byte)) (*Inbox, []byte) {
	return &Inbox{spare: make([]byte, bufSize), forward: forward}, make([]byte, bufSize)
}

// Attach sets the modem the handler swaps buffers with. Data delivered
// before Attach stays in the modem's buffer.
func (b *Inbox) Attach(m *modem.Modem) {
	b.modem.Store(m)
}

// Handle implements modem.DataFunc.
func (b *Inbox) Handle(conn, n int) {
	m := b.modem.Load()
	if m == nil {
		return
	}

	if m.Mode() == modem.ModePassthrough {
		buf := make([]byte, n)
		k := m.ReadPassthrough(buf)
		b.forward(conn, buf[:k])
		return
	}

	prev, _ := m.ReplaceBuffer(b.spare)
	b.spare = prev
	b.forward(conn, prev[:n])
}

// nsqLogger routes go-nsq's log lines to slog
type nsqLogger struct {
	logger *slog.Logger
}

func (l nsqLogger) Output(_ int, s string) error {
	l.logger.Warn(s)
	return nil
}
