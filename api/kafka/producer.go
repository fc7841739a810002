package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"hdrEnhancer/pkg/task"
)

type Producer interface {
	// SubmitTask publishes msg and returns the job handle assigned to it.
	SubmitTask(ctx context.Context, topic string, msg *task.Message) (string, error)
	Close() error
}

type producer struct {
	producer sarama.SyncProducer
}

func NewProducer(brokers []string) (Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return NewProducerFromSarama(p), nil
}

func NewProducerFromSarama(p sarama.SyncProducer) Producer {
	return &producer{producer: p}
}

func (p *producer) SubmitTask(ctx context.Context, topic string, msg *task.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if msg.JobHandle == "" {
		msg.JobHandle = uuid.New().String()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	pm := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(msg.TaskID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("trace_id"), Value: []byte(msg.TraceID)},
			{Key: []byte("job_handle"), Value: []byte(msg.JobHandle)},
		},
	}

	if _, _, err := p.producer.SendMessage(pm); err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	return msg.JobHandle, nil
}

func (p *producer) Close() error {
	return p.producer.Close()
}
