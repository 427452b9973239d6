package kafka

import (
	"context"
	"strconv"

	"github.com/Shopify/sarama"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/module/chat/model"
)

// Producer publishes message events to one topic, keyed by conversation.
type Producer struct {
	client sarama.Client
	sp     sarama.SyncProducer
	topic  string
	node   int64
}

// NewProducer dials the brokers and, if configured, ensures the topic.
func NewProducer(c Config, node int64, log *zap.Logger) (*Producer, error) {
	c.norm()
	cfg, err := BuildBaseConfig(c)
	if err != nil {
		return nil, err
	}
	client, err := sarama.NewClient(c.Brokers, cfg)
	if err != nil {
		return nil, err
	}
	if c.EnsureTopic {
		admin, err := sarama.NewClusterAdminFromClient(client)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		// admin 与 client 共用连接，这里不关闭 admin
		if err := EnsureTopic(admin, log, c.Topic, c.Partitions, c.ReplicationFactor); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	sp, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Producer{client: client, sp: sp, topic: c.Topic, node: node}, nil
}

func newProducerWith(sp sarama.SyncProducer, topic string, node int64) *Producer {
	return &Producer{sp: sp, topic: topic, node: node}
}

func (p *Producer) PublishMessage(ctx context.Context, m model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(model.NewMessageEvent(p.node, m))
	if err != nil {
		return err
	}
	_, _, err = p.sp.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(m.ConversationID.String()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(model.EventMessageCreated)},
			{Key: []byte("node"), Value: []byte(strconv.FormatInt(p.node, 10))},
		},
	})
	return err
}

func (p *Producer) Close() error {
	err := p.sp.Close()
	if p.client != nil && !p.client.Closed() {
		if cerr := p.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
