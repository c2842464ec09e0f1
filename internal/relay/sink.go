package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// Sink delivers one message and blocks until the broker acknowledges it.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

type topicSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// PubSubSink sends messages through per-topic Pub/Sub publishers, created
// on first use.
type PubSubSink struct {
	client  topicSource
	timeout time.Duration

	mu     sync.Mutex
	topics map[string]*gcppubsub.Publisher
}

func NewPubSubSink(client topicSource, timeout time.Duration) *PubSubSink {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PubSubSink{client: client, timeout: timeout, topics: map[string]*gcppubsub.Publisher{}}
}

func (s *PubSubSink) Send(ctx context.Context, msg Message) error {
	pub := s.publisher(msg.Topic)
	if pub == nil {
		return Permanent(fmt.Errorf("no publisher for topic %s", msg.Topic))
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := pub.Publish(ctx, &gcppubsub.Message{Data: msg.Data, Attributes: msg.Attributes}).Get(ctx)
	return err
}

func (s *PubSubSink) publisher(topic string) *gcppubsub.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.topics[topic]; ok {
		return pub
	}
	pub := s.client.Publisher(topic)
	if pub != nil {
		s.topics[topic] = pub
	}
	return pub
}

// Stop flushes and stops every publisher opened so far.
func (s *PubSubSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, pub := range s.topics {
		pub.Stop()
		delete(s.topics, topic)
	}
}
