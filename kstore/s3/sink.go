package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"

	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kprocessor"
)

// UploadSink stores every block as its own object under prefix. Object names
// carry a zero-padded sequence number so listing returns arrival order.
type UploadSink struct {
	client Client
	bucket string
	prefix string
	codec  kblock.Codec

	seq int
}

// NewUploadSink returns a sink writing objects under prefix.
func NewUploadSink(client Client, bucket, prefix string, codec kblock.Codec) *UploadSink {
	return &UploadSink{
		client: client,
		bucket: bucket,
		prefix: prefix,
		codec:  codec,
	}
}

func (s *UploadSink) Name() string {
	return "s3-upload"
}

func (s *UploadSink) Consume(ctx context.Context, block *kblock.DataBlock) error {
	data, err := s.codec.Encode(block)
	if err != nil {
		return err
	}
	name := s.objectName(s.seq)
	_, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", name, err)
	}
	s.seq++
	return nil
}

// Uploaded returns the number of stored objects.
func (s *UploadSink) Uploaded() int {
	return s.seq
}

func (s *UploadSink) objectName(seq int) string {
	return fmt.Sprintf("%s/%020d", s.prefix, seq)
}

var _ kprocessor.AsyncSink = (*UploadSink)(nil)
