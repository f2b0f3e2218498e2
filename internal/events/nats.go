package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Headers set on every published message so subscribers can filter by table
// without decoding the payload.
const (
	HeaderBase  = "Airpuck-Base"
	HeaderTable = "Airpuck-Table"
)

// subscriptionBuffer bounds how many undelivered messages a subscription
// holds. NATS drops messages for slow consumers past this point.
const subscriptionBuffer = 64

// NATSPublisher publishes table events as JSON, one subject per topic.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, append([]nats.Option{nats.Name("airpuck-publisher")}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish sends event on topic. Events that embed Source carry the base and
// table in the HeaderBase and HeaderTable headers.
func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", topic, err)
	}
	msg := nats.NewMsg(topic)
	msg.Data = data
	if s, ok := event.(sourced); ok {
		src := s.eventSource()
		msg.Header.Set(HeaderBase, src.BaseID)
		msg.Header.Set(HeaderTable, src.Table)
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Flush blocks until the server has processed everything published so far.
func (p *NATSPublisher) Flush() error {
	return p.conn.Flush()
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber receives table events from NATS.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to NATS and keeps reconnecting forever.
// opts are applied after the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.Name("airpuck-subscriber"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Message is one event received from the bus. Source is filled from the
// message headers and is zero for messages published without them.
type Message struct {
	Topic  string
	Source Source
	Data   []byte
}

func messageFrom(m *nats.Msg) Message {
	msg := Message{Topic: m.Subject, Data: m.Data}
	if m.Header != nil {
		msg.Source = Source{BaseID: m.Header.Get(HeaderBase), Table: m.Header.Get(HeaderTable)}
	}
	return msg
}

// Subscribe delivers messages for topic (NATS wildcards such as TopicAll
// work) on the returned channel. cancel unsubscribes, then closes the
// channel; calling it again is a no-op.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan Message, func(), error) {
	in := make(chan *nats.Msg, subscriptionBuffer)
	sub, err := s.conn.ChanSubscribe(topic, in)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	// Messages published right after Subscribe returns must be routed here.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, nil, fmt.Errorf("flushing subscription to %s: %w", topic, err)
	}

	out := make(chan Message, subscriptionBuffer)
	stop := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-stop:
				return
			case m := <-in:
				select {
				case out <- messageFrom(m):
				case <-stop:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			close(stop)
		})
	}
	return out, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
