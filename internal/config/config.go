package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/Y-Juice/livestream-prototype/pkg/config"
	"github.com/Y-Juice/livestream-prototype/pkg/log"
)

type Config struct {
	Server     ServerConfig
	WebSocket  WebSocketConfig
	Limits     LimitsConfig
	Moderation ModerationConfig
	Reaper     ReaperConfig
	Auth       AuthConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	Log        log.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

// LimitsConfig holds the coordinator's capacity ceilings. Eviction past
// these must never fire under normal load.
type LimitsConfig struct {
	MaxStreams      int `mapstructure:"max_streams"`
	MaxUsers        int `mapstructure:"max_users"`
	MaxChatMessages int `mapstructure:"max_chat_messages"`
	MaxCoStreamers  int `mapstructure:"max_co_streamers"`
}

type ModerationConfig struct {
	WarningThreshold int           `mapstructure:"warning_threshold"`
	TimeoutDuration  time.Duration `mapstructure:"timeout_duration"`
	Blocklist        []string      `mapstructure:"blocklist"`
}

type ReaperConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// AuthConfig configures optional JWT identity verification. An empty
// secret means identities are taken from the register payload as-is.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// KafkaConfig configures the stream lifecycle event producer. Empty
// brokers disable it.
type KafkaConfig struct {
	Brokers    string
	Topic      string
	Partitions int
}

// RedisConfig configures the presence mirror. An empty address disables
// it.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("limits.max_streams", 100)
	v.SetDefault("limits.max_users", 1000)
	v.SetDefault("limits.max_chat_messages", 200)
	v.SetDefault("limits.max_co_streamers", 2)
	v.SetDefault("moderation.warning_threshold", 3)
	v.SetDefault("moderation.timeout_duration", "60s")
	v.SetDefault("reaper.interval", "30s")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "stream-events")
	v.SetDefault("kafka.partitions", 4)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "presence:stream_updates")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_STREAM_TOPIC")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Moderation.TimeoutDuration = parseDuration(v, "moderation.timeout_duration", 60*time.Second)
	cfg.Reaper.Interval = parseDuration(v, "reaper.interval", 30*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
