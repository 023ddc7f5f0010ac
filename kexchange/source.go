package kexchange

import (
	"context"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kprocessor"
)

// FetchSource decodes polled records into blocks.
type FetchSource struct {
	client  Fetcher
	codec   kblock.Codec
	senders int

	pending []*kgo.Record
	ended   map[string]struct{}
}

// SourceOption configures a FetchSource.
type SourceOption func(*FetchSource)

// WithSenders sets how many senders must end before the source finishes.
func WithSenders(n int) SourceOption {
	return func(s *FetchSource) {
		s.senders = n
	}
}

// NewFetchSource returns a source expecting a single sender by default.
func NewFetchSource(client Fetcher, codec kblock.Codec, opts ...SourceOption) *FetchSource {
	s := &FetchSource{
		client:  client,
		codec:   codec,
		senders: 1,
		ended:   map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FetchSource) Name() string {
	return "exchange-fetch"
}

func (s *FetchSource) Generate(ctx context.Context) (*kblock.DataBlock, error) {
	for {
		for len(s.pending) > 0 {
			r := s.pending[0]
			s.pending = s.pending[1:]

			if isEndOfStream(r) {
				s.ended[string(r.Key)] = struct{}{}
				continue
			}
			block, err := s.codec.Decode(r.Value)
			if err != nil {
				return nil, fmt.Errorf("failed to decode %s/%d@%d: %w", r.Topic, r.Partition, r.Offset, err)
			}
			return block.
				WithMeta("sender", string(r.Key)).
				WithMeta("partition", strconv.Itoa(int(r.Partition))).
				WithMeta("offset", strconv.FormatInt(r.Offset, 10)), nil
		}

		if len(s.ended) >= s.senders {
			return nil, nil
		}

		fetches := s.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil, ErrClientClosed
		}
		if err := fetches.Err(); err != nil {
			return nil, err
		}
		fetches.EachRecord(func(r *kgo.Record) {
			s.pending = append(s.pending, r)
		})
	}
}

var _ kprocessor.AsyncSource = (*FetchSource)(nil)
