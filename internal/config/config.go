package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/studyhive/realtime-service/pkg/config"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Redis     RedisConfig
	Cassandra CassandraConfig
	Session   SessionConfig
	Room      RoomConfig
	WebSocket WebSocketConfig
	History   HistoryConfig
	WebRTC    WebRTCConfig
	JWT       JWTConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host       string
	Port       int
	InstanceID string `mapstructure:"instance_id"`
}

// StoreConfig selects the session store backend: "redis" or "memory".
type StoreConfig struct {
	Backend string
}

type RedisConfig struct {
	Address       string
	Password      string
	DB            int
	PubSubChannel string `mapstructure:"pub_sub_channel"`
}

type CassandraConfig struct {
	Hosts          []string
	Keyspace       string
	Consistency    string
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Timeout        time.Duration
}

type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	HeartbeatHint time.Duration `mapstructure:"heartbeat_hint"`
}

type RoomConfig struct {
	MaxParticipants int `mapstructure:"max_participants"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type HistoryConfig struct {
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	CachePrefix string        `mapstructure:"cache_prefix"`
}

// WebRTCConfig carries the ICE server list handed to clients. When
// TURNSecret is set, a time-limited TURN credential is derived per
// request instead of shipping a static password.
type WebRTCConfig struct {
	STUNURLs   []string      `mapstructure:"stun_urls"`
	TURNHost   string        `mapstructure:"turn_host"`
	TURNSecret string        `mapstructure:"turn_secret"`
	TURNTTL    time.Duration `mapstructure:"turn_ttl"`
}

type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessDuration time.Duration `mapstructure:"access_duration"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8095)
	v.SetDefault("store.backend", "redis")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pub_sub_channel", "ws:fanout")
	v.SetDefault("cassandra.hosts", []string{"localhost:9042"})
	v.SetDefault("cassandra.keyspace", "studyhive")
	v.SetDefault("cassandra.consistency", "LOCAL_QUORUM")
	v.SetDefault("cassandra.connect_timeout", "10s")
	v.SetDefault("cassandra.timeout", "5s")
	v.SetDefault("session.ttl", "6m")
	v.SetDefault("session.heartbeat_hint", "5m")
	v.SetDefault("room.max_participants", 0)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("history.cache_ttl", "30s")
	v.SetDefault("history.cache_prefix", "chat:history")
	v.SetDefault("webrtc.stun_urls", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("webrtc.turn_host", "")
	v.SetDefault("webrtc.turn_secret", "")
	v.SetDefault("webrtc.turn_ttl", "1h")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "studyhive")
	v.SetDefault("jwt.access_duration", "30m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.instance_id", "INSTANCE_ID")
	v.BindEnv("store.backend", "STORE_BACKEND")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.pub_sub_channel", "REDIS_PUBSUB_CHANNEL")
	v.BindEnv("cassandra.hosts", "CASSANDRA_HOSTS")
	v.BindEnv("cassandra.keyspace", "CASSANDRA_KEYSPACE")
	v.BindEnv("webrtc.turn_host", "TURN_HOST")
	v.BindEnv("webrtc.turn_secret", "TURN_SECRET")
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Cassandra.ConnectTimeout = parseDuration(v, "cassandra.connect_timeout", 10*time.Second)
	cfg.Cassandra.Timeout = parseDuration(v, "cassandra.timeout", 5*time.Second)
	cfg.Session.TTL = parseDuration(v, "session.ttl", 6*time.Minute)
	cfg.Session.HeartbeatHint = parseDuration(v, "session.heartbeat_hint", 5*time.Minute)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.History.CacheTTL = parseDuration(v, "history.cache_ttl", 30*time.Second)
	cfg.WebRTC.TURNTTL = parseDuration(v, "webrtc.turn_ttl", time.Hour)
	cfg.JWT.AccessDuration = parseDuration(v, "jwt.access_duration", 30*time.Minute)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
