package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/emilabos/scrappy-chat/internal/log"
	"github.com/emilabos/scrappy-chat/internal/store"
)

// ClientConfig configures the chat client binary.
type ClientConfig struct {
	Relay        RelayEndpointConfig `mapstructure:"relay"`
	WebSocket    WebSocketConfig     `mapstructure:"websocket"`
	Reconnect    ReconnectConfig     `mapstructure:"reconnect"`
	Interstitial InterstitialConfig  `mapstructure:"interstitial"`
	Store        StoreConfig         `mapstructure:"store"`
	Log          log.Config          `mapstructure:"log"`
}

// RelayConfig configures the relay server binary.
type RelayConfig struct {
	Server     ServerConfig     `mapstructure:"server"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
	Ads        AdsConfig        `mapstructure:"ads"`
	Log        log.Config       `mapstructure:"log"`
}

type RelayEndpointConfig struct {
	WSURL   string `mapstructure:"ws_url"`
	HTTPURL string `mapstructure:"http_url"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type ReconnectConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Interval    time.Duration `mapstructure:"interval"`
}

type InterstitialConfig struct {
	IdleAfter time.Duration `mapstructure:"idle_after"`
}

type StoreConfig struct {
	Backend string            `mapstructure:"backend"` // "file" or "redis"
	Path    string            `mapstructure:"path"`
	Redis   store.RedisConfig `mapstructure:"redis"`
}

type TranscriptConfig struct {
	Backend  string            `mapstructure:"backend"` // "memory" or "redis"
	Capacity int               `mapstructure:"capacity"`
	Redis    store.RedisConfig `mapstructure:"redis"`
}

type AdsConfig struct {
	URIs []string `mapstructure:"uris"`
}

// LoadClient reads client configuration from ./config/client.yaml and the
// environment.
func LoadClient() (*ClientConfig, error) {
	v, err := load("client")
	if err != nil {
		return nil, err
	}

	v.SetDefault("relay.ws_url", "ws://127.0.0.1:8000")
	v.SetDefault("relay.http_url", "http://127.0.0.1:8000")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("reconnect.max_attempts", 5)
	v.SetDefault("reconnect.interval", "3s")
	v.SetDefault("interstitial.idle_after", "5m")
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.path", "scrappy-chat.json")
	v.SetDefault("store.redis.address", "localhost:6379")
	v.SetDefault("store.redis.prefix", "scrappy:client")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "scrappy-chat.log")

	v.BindEnv("relay.ws_url", "RELAY_WS_URL")
	v.BindEnv("relay.http_url", "RELAY_HTTP_URL")
	v.BindEnv("store.backend", "STORE_BACKEND")
	v.BindEnv("store.path", "STORE_PATH")
	v.BindEnv("store.redis.address", "REDIS_ADDRESS")
	v.BindEnv("store.redis.password", "REDIS_PASSWORD")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client config: %w", err)
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Reconnect.Interval = parseDuration(v, "reconnect.interval", 3*time.Second)
	cfg.Interstitial.IdleAfter = parseDuration(v, "interstitial.idle_after", 5*time.Minute)

	return &cfg, nil
}

// LoadRelay reads relay configuration from ./config/relay.yaml and the
// environment.
func LoadRelay() (*RelayConfig, error) {
	v, err := load("relay")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("transcript.backend", "memory")
	v.SetDefault("transcript.capacity", 500)
	v.SetDefault("transcript.redis.address", "localhost:6379")
	v.SetDefault("transcript.redis.prefix", "scrappy:relay")
	v.SetDefault("ads.uris", []string{})
	v.SetDefault("log.level", "info")

	v.BindEnv("server.port", "PORT")
	v.BindEnv("transcript.backend", "TRANSCRIPT_BACKEND")
	v.BindEnv("transcript.capacity", "TRANSCRIPT_CAPACITY")
	v.BindEnv("transcript.redis.address", "REDIS_ADDRESS")
	v.BindEnv("transcript.redis.password", "REDIS_PASSWORD")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg RelayConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal relay config: %w", err)
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)

	return &cfg, nil
}

func load(name string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil // rely on defaults and env vars
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return v, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
