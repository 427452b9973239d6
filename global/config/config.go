package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/zhihao1021/tjoy/data/database"
	"github.com/zhihao1021/tjoy/data/database/mgo/mongoutil"
	"github.com/zhihao1021/tjoy/logger"
	"github.com/zhihao1021/tjoy/service/chat"
	"github.com/zhihao1021/tjoy/service/kafka"
	"github.com/zhihao1021/tjoy/service/nacos"
	"github.com/zhihao1021/tjoy/service/natsx"
	"github.com/zhihao1021/tjoy/service/storage/redis"
	"github.com/zhihao1021/tjoy/service/translate"
	"github.com/zhihao1021/tjoy/tools/errs"
	"github.com/zhihao1021/tjoy/tools/ids"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type HTTPConfig struct {
	Addr              string        `mapstructure:"addr"`
	Mode              string        `mapstructure:"mode"` // gin: debug/release/test
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver   string            `mapstructure:"driver"` // memory/postgres/mongo
	Postgres database.PgConfig `mapstructure:"postgres"`
	Mongo    mongoutil.Config  `mapstructure:"mongo"`
	Memory   MemoryConfig      `mapstructure:"memory"`
}

// MemoryConfig seeds the in-process store, which keeps nothing across
// restarts. Development and tests only.
type MemoryConfig struct {
	Seed []SeedMembership `mapstructure:"seed"`
}

type SeedMembership struct {
	Conversation ids.ID   `mapstructure:"conversation"`
	Users        []ids.ID `mapstructure:"users"`
}

// JWTConfig 公私钥为 PEM 文件路径
type JWTConfig struct {
	Alg        string        `mapstructure:"alg"`
	PublicKey  string        `mapstructure:"public_key"`
	PrivateKey string        `mapstructure:"private_key"`
	Secret     string        `mapstructure:"secret"`
	Leeway     time.Duration `mapstructure:"leeway"`
}

type NATSConfig struct {
	natsx.Config `mapstructure:",squash"`

	Enabled bool               `mapstructure:"enabled"`
	Events  natsx.EventsConfig `mapstructure:"events"`
	// 重复投递窗口，0 关闭去重
	IdemTTL time.Duration `mapstructure:"idem_ttl"`
}

type KafkaConfig struct {
	kafka.Config `mapstructure:",squash"`

	Enabled bool `mapstructure:"enabled"`
}

type RedisConfig struct {
	redis.Config `mapstructure:",squash"`

	Enabled     bool          `mapstructure:"enabled"`
	PresenceTTL time.Duration `mapstructure:"presence_ttl"`
}

// AppConfig 网关进程的全部配置
type AppConfig struct {
	NodeID    int64            `mapstructure:"node_id"` // 0..1023，写进每个 ID
	HTTP      HTTPConfig       `mapstructure:"http"`
	Log       logger.Config    `mapstructure:"log"`
	WS        chat.Options     `mapstructure:"ws"`
	Store     StoreConfig      `mapstructure:"store"`
	JWT       JWTConfig        `mapstructure:"jwt"`
	Translate translate.Config `mapstructure:"translate"`
	NATS      NATSConfig       `mapstructure:"nats"`
	Kafka     KafkaConfig      `mapstructure:"kafka"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Nacos     nacos.Config     `mapstructure:"nacos"`
}

// Default is used for every key the file leaves out.
func Default() *AppConfig {
	return &AppConfig{
		NodeID: 1,
		HTTP:   HTTPConfig{Addr: ":8080", Mode: "release"},
		Log:    logger.Config{Level: "info", Color: true},
		Store:  StoreConfig{Driver: DriverMemory},
		JWT:    JWTConfig{Alg: "ES256"},
		NATS:   NATSConfig{IdemTTL: 10 * time.Minute},
	}
}

// Load reads path (optional), applies the environment and validates.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.WrapMsg(err, "read config", "path", path)
		}
		if err := cfg.MergeYAML(b); err != nil {
			return nil, errs.WrapMsg(err, "parse config", "path", path)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.norm()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Overlay merges a remote document over c, then re-applies the
// environment so it keeps the last word.
func (c *AppConfig) Overlay(doc []byte) error {
	if err := c.MergeYAML(doc); err != nil {
		return err
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	c.norm()
	return c.Validate()
}

// MergeYAML decodes doc over c; keys absent from doc keep their value.
func (c *AppConfig) MergeYAML(doc []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           c,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// ApplyEnv 环境变量优先级高于文件
func (c *AppConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DB_URL"); ok && v != "" {
		c.Store.Postgres.DSN = v
		if c.Store.Driver == "" || c.Store.Driver == DriverMemory {
			c.Store.Driver = DriverPostgres
		}
	}
	if v, ok := lookup("PUBLIC_KEY"); ok && v != "" {
		c.JWT.PublicKey = v
	}
	if v, ok := lookup("PRIVATE_KEY"); ok && v != "" {
		c.JWT.PrivateKey = v
	}
	if v, ok := lookup("TRANSLATER_API_KEY"); ok && v != "" {
		c.Translate.APIKey = v
	}
	if v, ok := lookup("NODE_ID"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errs.ErrArgs.WrapMsg("NODE_ID not an integer", "value", v)
		}
		c.NodeID = n
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *AppConfig) norm() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	c.JWT.Alg = strings.ToUpper(c.JWT.Alg)
	if c.JWT.Alg == "" {
		c.JWT.Alg = "ES256"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		c.HTTP.ReadHeaderTimeout = 10 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 15 * time.Second
	}
	if c.NATS.IdemTTL < 0 {
		c.NATS.IdemTTL = 0
	}
	if c.Redis.PresenceTTL <= 0 {
		c.Redis.PresenceTTL = 2 * time.Minute
	}
}

// Validate rejects combinations the gateway cannot start with.
func (c *AppConfig) Validate() error {
	if c.NodeID < 0 || c.NodeID > ids.MaxInstance {
		return errs.ErrArgs.WrapMsg("node_id out of range", "node_id", c.NodeID)
	}
	switch c.Store.Driver {
	case DriverMemory:
		for _, sd := range c.Store.Memory.Seed {
			if sd.Conversation <= 0 || len(sd.Users) == 0 {
				return errs.ErrArgs.WrapMsg("bad memory seed", "conversation", sd.Conversation)
			}
		}
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" {
			return errs.ErrArgs.WrapMsg("postgres driver without dsn")
		}
	case DriverMongo:
		if c.Store.Mongo.Uri == "" && len(c.Store.Mongo.Address) == 0 {
			return errs.ErrArgs.WrapMsg("mongo driver without uri or address")
		}
	default:
		return errs.ErrArgs.WrapMsg("unknown store driver", "driver", c.Store.Driver)
	}
	switch {
	case c.JWT.Alg == "ES256":
		if c.JWT.PublicKey == "" {
			return errs.ErrArgs.WrapMsg("ES256 needs jwt.public_key (or PUBLIC_KEY)")
		}
	case strings.HasPrefix(c.JWT.Alg, "HS"):
		if c.JWT.Secret == "" {
			return errs.ErrArgs.WrapMsg("HMAC needs jwt.secret", "alg", c.JWT.Alg)
		}
	default:
		return errs.ErrArgs.WrapMsg("unsupported jwt alg", "alg", c.JWT.Alg)
	}
	if c.NATS.Enabled && len(c.NATS.Servers) == 0 {
		return errs.ErrArgs.WrapMsg("nats enabled without servers")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errs.ErrArgs.WrapMsg("kafka enabled without brokers")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errs.ErrArgs.WrapMsg("redis enabled without addr")
	}
	if c.Nacos.Enabled && (len(c.Nacos.Servers) == 0 || c.Nacos.DataID == "") {
		return errs.ErrArgs.WrapMsg("nacos enabled without servers or data_id")
	}
	return nil
}

// LogLevelOf extracts log.level from a remote document; "" when absent.
// Only the level is applied to a running process.
func LogLevelOf(doc []byte) (string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return "", err
	}
	var out struct {
		Log struct {
			Level string `mapstructure:"level"`
		} `mapstructure:"log"`
	}
	if err := mapstructure.WeakDecode(raw, &out); err != nil {
		return "", err
	}
	return out.Log.Level, nil
}
