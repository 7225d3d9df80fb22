package pubsub

import (
	"fmt"
	"strings"
	"time"
)

const (
	DriverNone  = "none"
	DriverRedis = "redis"
	DriverKafka = "kafka"
)

const (
	roomChannelPrefix = "relay:room:"
	roomChannelSuffix = ":events"
)

// KafkaConfig holds Kafka-specific configuration.
type KafkaConfig struct {
	Brokers    string `mapstructure:"brokers"`
	Topic      string `mapstructure:"topic"`
	Partitions int    `mapstructure:"partitions"`
}

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Config selects and configures the event stream driver.
type Config struct {
	Driver string      `mapstructure:"driver"`
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

// RoomChannel names the channel carrying events for room.
func RoomChannel(room string) string {
	return roomChannelPrefix + room + roomChannelSuffix
}

// RoomFromChannel is the inverse of RoomChannel. Room keys may themselves
// contain ':' so the prefix and suffix are stripped rather than split.
func RoomFromChannel(channel string) (string, error) {
	rest, ok := strings.CutPrefix(channel, roomChannelPrefix)
	if !ok {
		return "", fmt.Errorf("invalid channel format: %s", channel)
	}
	room, ok := strings.CutSuffix(rest, roomChannelSuffix)
	if !ok {
		return "", fmt.Errorf("invalid channel format: %s", channel)
	}
	return room, nil
}

// NewPublisher builds the publisher named by cfg.Driver.
func NewPublisher(cfg Config) (Publisher, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverNone:
		return Discard{}, nil
	case DriverRedis:
		return NewRedisPublisher(cfg.Redis)
	case DriverKafka:
		return NewKafkaPublisher(cfg.Kafka)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
