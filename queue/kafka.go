// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package queue

import (
	"context"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/norsh/blockchain/config"
)

// Kafka consumes the request topic through a consumer group, so multiple
// workers share the partition load and offsets survive restarts.
type Kafka struct {
	reader *kafka.Reader
}

// NewKafka creates a consumer on the configured brokers.
func NewKafka(cfg config.QueueConfig) *Kafka {
	return &Kafka{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.Group,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10 << 20,
		}),
	}
}

// Fetch pulls the next message without committing its offset.
func (k *Kafka) Fetch(ctx context.Context) (*Message, error) {
	msg, err := k.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "fetch message")
	}
	return &Message{
		Value: msg.Value,
		commit: func(ctx context.Context) error {
			return k.reader.CommitMessages(ctx, msg)
		},
	}, nil
}

// Close stops the reader.
func (k *Kafka) Close() error {
	return k.reader.Close()
}
