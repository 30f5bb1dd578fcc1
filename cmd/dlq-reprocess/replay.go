package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/outbox"
)

// errNotReplayable помечает сообщения DLQ, которые нельзя вернуть в поток.
var errNotReplayable = errors.New("message is not replayable")

type replayStats struct {
	scanned  int
	replayed int
	skipped  int
}

func (s *replayStats) add(other replayStats) {
	s.scanned += other.scanned
	s.replayed += other.replayed
	s.skipped += other.skipped
}

// replayCandidate: восстановленное сообщение, готовое к публикации.
type replayCandidate struct {
	topic     string
	key       string
	value     []byte
	eventType string
	orderID   string
}

type replayer struct {
	cfg       config
	client    offsetClient
	source    partitionSource
	publisher replayPublisher
	logger    *log.Entry
}

func (r *replayer) run(ctx context.Context) (replayStats, error) {
	var total replayStats
	if r.cfg.execute && r.publisher == nil {
		return total, errors.New("publisher is required in execute mode")
	}

	partitions, err := r.client.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", r.cfg.sourceTopic, err)
	}
	slices.Sort(partitions)

	for _, partition := range partitions {
		remaining := r.cfg.limit - total.scanned
		if remaining <= 0 {
			break
		}
		stats, err := r.partition(ctx, partition, remaining)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// partition читает сообщения от стартового offset до зафиксированного newest,
// поэтому события, пришедшие в DLQ во время работы, не попадают в этот прогон.
func (r *replayer) partition(ctx context.Context, partition int32, limit int) (replayStats, error) {
	var stats replayStats

	oldest, err := r.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := r.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	start := oldest
	if r.cfg.fromNewest {
		start = max(newest-int64(limit), oldest)
	}

	pc, err := r.source.ConsumePartition(r.cfg.sourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for stats.scanned < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case consumerErr := <-pc.Errors():
			if consumerErr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, consumerErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}
			idle.Reset(r.cfg.idleTimeout)
			stats.scanned++

			if err := r.handle(ctx, msg); err != nil {
				if !errors.Is(err, errNotReplayable) {
					return stats, err
				}
				stats.skipped++
			} else {
				stats.replayed++
			}

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		}
	}
	return stats, nil
}

func (r *replayer) handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	entry := r.logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	candidate, err := decodeDLQMessage(msg.Value, r.cfg.targetTopic)
	if err != nil {
		entry.WithError(err).Warn("skip dlq message")
		return err
	}
	if !r.matches(candidate) {
		return fmt.Errorf("%w: filtered out", errNotReplayable)
	}

	entry = entry.WithFields(log.Fields{
		"target_topic": candidate.topic,
		"key":          candidate.key,
		"event_type":   candidate.eventType,
	})
	if !r.cfg.execute {
		entry.Info("dlq replay candidate")
		return nil
	}

	headers := map[string]string{kafka.HeaderOriginalTopic: r.cfg.sourceTopic}
	if candidate.eventType != "" {
		headers[kafka.HeaderEventType] = candidate.eventType
	}
	if err := r.publisher.Publish(ctx, candidate.topic, candidate.key, candidate.value, headers); err != nil {
		return fmt.Errorf("publish replay message: %w", err)
	}
	entry.Info("dlq message replayed")
	return nil
}

func (r *replayer) matches(c replayCandidate) bool {
	if r.cfg.eventType != "" && c.eventType != r.cfg.eventType {
		return false
	}
	if r.cfg.orderID != "" && c.orderID != r.cfg.orderID {
		return false
	}
	return true
}

// decodeDLQMessage понимает оба формата DLQ: сообщение от consumer с исходным значением
// и конверт outbox с DLQPayload внутри. Для outbox собирается новый OutboxEnvelope.
func decodeDLQMessage(raw []byte, targetTopic string) (replayCandidate, error) {
	var consumerMsg kafka.ConsumerDLQMessage
	if err := json.Unmarshal(raw, &consumerMsg); err == nil && consumerMsg.OriginalValue != "" {
		topic := strings.TrimSpace(consumerMsg.OriginalTopic)
		if topic == "" {
			topic = targetTopic
		}
		candidate := replayCandidate{
			topic:   topic,
			key:     consumerMsg.OriginalKey,
			value:   []byte(consumerMsg.OriginalValue),
			orderID: consumerMsg.OriginalKey,
		}
		var envelope kafka.OutboxEnvelope
		if json.Unmarshal(candidate.value, &envelope) == nil {
			candidate.eventType = envelope.EventType
		}
		return candidate, nil
	}

	var envelope kafka.OutboxEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Payload) == 0 {
		return replayCandidate{}, fmt.Errorf("%w: unknown format", errNotReplayable)
	}

	var failed outbox.DLQPayload
	if err := json.Unmarshal(envelope.Payload, &failed); err != nil {
		return replayCandidate{}, fmt.Errorf("%w: decode outbox dlq payload: %v", errNotReplayable, err)
	}
	if len(failed.Payload) == 0 || bytes.Equal(failed.Payload, []byte("null")) {
		return replayCandidate{}, fmt.Errorf("%w: outbox dlq payload has no original event", errNotReplayable)
	}

	replay := kafka.OutboxEnvelope{
		ID:            firstNonEmpty(failed.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(failed.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(failed.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(failed.EventType, envelope.EventType),
		Payload:       failed.Payload,
		PublishedAt:   time.Now().UTC(),
	}
	if replay.EventType == domain.EventTypeOrderCreated {
		if _, err := kafka.ParseOrderCreated(&replay); err != nil {
			return replayCandidate{}, fmt.Errorf("%w: %v", errNotReplayable, err)
		}
	}

	value, err := json.Marshal(replay)
	if err != nil {
		return replayCandidate{}, fmt.Errorf("encode replay envelope: %w", err)
	}
	return replayCandidate{
		topic:     targetTopic,
		key:       firstNonEmpty(replay.AggregateID, replay.ID),
		value:     value,
		eventType: replay.EventType,
		orderID:   replay.AggregateID,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
