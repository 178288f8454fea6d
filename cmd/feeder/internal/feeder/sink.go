package feeder

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/afero"

	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

// FileSink replaces the shared data file on every write. Readers never observe a partial file.
type FileSink struct {
	fs   afero.Fs
	path string
}

func NewFileSink(fs afero.Fs, path string) *FileSink {
	return &FileSink{fs: fs, path: path}
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Write(ctx context.Context, _ *models.Quote, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// KafkaSink publishes quotes keyed by symbol so one symbol stays on one partition.
type KafkaSink struct {
	writer KafkaWriter
}

func NewKafkaSink(writer KafkaWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, q *models.Quote, payload []byte) error {
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(q.Symbol),
		Value: payload,
	})
}

// Close flushes buffered messages.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
