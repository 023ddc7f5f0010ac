package kexchange

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kprocessor"
)

// SendSink publishes blocks to a topic.
type SendSink struct {
	client Producer
	topic  string
	codec  kblock.Codec
	sender []byte

	sent int
}

// NewSendSink returns a sink publishing as sender.
func NewSendSink(client Producer, topic, sender string, codec kblock.Codec) *SendSink {
	return &SendSink{
		client: client,
		topic:  topic,
		codec:  codec,
		sender: []byte(sender),
	}
}

func (s *SendSink) Name() string {
	return "exchange-send"
}

func (s *SendSink) Consume(ctx context.Context, block *kblock.DataBlock) error {
	value, err := s.codec.Encode(block)
	if err != nil {
		return err
	}
	if err := s.client.ProduceSync(ctx, &kgo.Record{
		Topic: s.topic,
		Key:   s.sender,
		Value: value,
	}).FirstErr(); err != nil {
		return err
	}
	s.sent++
	return nil
}

// OnFinish publishes the end-of-stream marker.
func (s *SendSink) OnFinish(ctx context.Context) error {
	return s.client.ProduceSync(ctx, &kgo.Record{
		Topic:   s.topic,
		Key:     s.sender,
		Headers: []kgo.RecordHeader{{Key: HeaderEndOfStream}},
	}).FirstErr()
}

// Sent returns the number of published blocks.
func (s *SendSink) Sent() int {
	return s.sent
}

var (
	_ kprocessor.AsyncSink     = (*SendSink)(nil)
	_ kprocessor.AsyncFinisher = (*SendSink)(nil)
)
