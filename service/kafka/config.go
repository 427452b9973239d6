package kafka

import "time"

type Config struct {
	Brokers           []string      `mapstructure:"brokers"`
	Topic             string        `mapstructure:"topic"`
	Version           string        `mapstructure:"version"`     // e.g. "2.1.0"
	Compression       string        `mapstructure:"compression"` // none/snappy/lz4/zstd
	Retries           int           `mapstructure:"retries"`
	EnsureTopic       bool          `mapstructure:"ensure_topic"`
	Partitions        int32         `mapstructure:"partitions"`
	ReplicationFactor int16         `mapstructure:"replication_factor"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
}

const DefaultTopic = "tjoy.chat.messages"

func (c *Config) norm() {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.Version == "" {
		c.Version = "2.1.0"
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.Partitions <= 0 {
		c.Partitions = 8
	}
	if c.ReplicationFactor <= 0 {
		c.ReplicationFactor = 1
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
}
