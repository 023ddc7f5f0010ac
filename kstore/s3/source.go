package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kprocessor"
)

// FetchSource emits one block per object under prefix, in key order.
type FetchSource struct {
	client Client
	bucket string
	prefix string
	codec  kblock.Codec

	keys   []string
	listed bool
	next   int
}

// NewFetchSource returns a source reading every object under prefix.
func NewFetchSource(client Client, bucket, prefix string, codec kblock.Codec) *FetchSource {
	return &FetchSource{
		client: client,
		bucket: bucket,
		prefix: prefix,
		codec:  codec,
	}
}

func (s *FetchSource) Name() string {
	return "s3-fetch"
}

func (s *FetchSource) Generate(ctx context.Context) (*kblock.DataBlock, error) {
	if !s.listed {
		if err := s.list(ctx); err != nil {
			return nil, err
		}
		s.listed = true
	}
	if s.next >= len(s.keys) {
		return nil, nil
	}

	key := s.keys[s.next]
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	block, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	s.next++
	return block.WithMeta("object", key), nil
}

func (s *FetchSource) list(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix, Recursive: true}) {
		if info.Err != nil {
			return fmt.Errorf("failed to list %s/%s: %w", s.bucket, s.prefix, info.Err)
		}
		s.keys = append(s.keys, info.Key)
	}
	return nil
}

var _ kprocessor.AsyncSource = (*FetchSource)(nil)
