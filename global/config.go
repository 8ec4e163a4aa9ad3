package global

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig is populated once at startup from CHAT_* environment
// variables. Zero values fall back to the defaults below, which match a
// local single-node deployment.
type AppConfig struct {
	Addr string `envconfig:"ADDR" default:":3001"`

	// AllowedOrigins restricts browser clients; empty means any origin.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`

	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"chat"`
	MongoUser     string `envconfig:"MONGO_USER"`
	MongoPassword string `envconfig:"MONGO_PASSWORD"`

	PostgresURL string `envconfig:"POSTGRES_URL" default:"postgres://localhost:5432/chat"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB"`

	// DurableStore routes chat messages through the write batcher. With
	// it off, messages get a wall-clock id and are emitted immediately
	// without touching the stores.
	DurableStore bool `envconfig:"DURABLE_STORE" default:"true"`

	FlushInterval  time.Duration `envconfig:"FLUSH_INTERVAL" default:"500ms"`
	FanoutInterval time.Duration `envconfig:"FANOUT_INTERVAL" default:"1s"`
	CursorInterval time.Duration `envconfig:"CURSOR_INTERVAL" default:"500ms"`
	StoreTimeout   time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`

	// Profile cache is dropped wholesale every CacheClearEvery, aligned
	// to local midnight.
	CacheClearEvery time.Duration `envconfig:"CACHE_CLEAR_EVERY" default:"72h"`

	HistoryPageSize int64 `envconfig:"HISTORY_PAGE_SIZE" default:"40"`
	SendQueueSize   int   `envconfig:"SEND_QUEUE_SIZE" default:"256"`

	NodeID int64 `envconfig:"NODE_ID" default:"1"`
}

// LoadConfig reads the process environment into an AppConfig.
func LoadConfig() (*AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("chat", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
