package events

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
)

// Sink publishes events to a conversation topic plus the process-wide
// firehose topic. Each conversation's scheduler owns exactly one sink.
type Sink struct {
	pub   message.Publisher
	topic string
}

func NewSink(pub message.Publisher, topic string) *Sink {
	return &Sink{pub: pub, topic: topic}
}

func (s *Sink) Publish(e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	if err := s.pub.Publish(s.topic, message.NewMessage(watermill.NewUUID(), b)); err != nil {
		return errors.Wrapf(err, "publish to %s", s.topic)
	}
	if err := s.pub.Publish(TopicFirehose, message.NewMessage(watermill.NewUUID(), b)); err != nil {
		return errors.Wrap(err, "publish to firehose")
	}
	return nil
}

func (s *Sink) Topic() string { return s.topic }
