package nacos

import (
	"net"
	"strconv"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"

	"github.com/zhihao1021/tjoy/tools/errs"
)

// Config 远程配置中心
type Config struct {
	Enabled     bool     `mapstructure:"enabled"`
	Servers     []string `mapstructure:"servers"` // host:port
	NamespaceID string   `mapstructure:"namespace_id"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	DataID      string   `mapstructure:"data_id"`
	Group       string   `mapstructure:"group"`
	TimeoutMs   uint64   `mapstructure:"timeout_ms"`
	CacheDir    string   `mapstructure:"cache_dir"`
	LogDir      string   `mapstructure:"log_dir"`
	LogLevel    string   `mapstructure:"log_level"`
}

func (c *Config) norm() {
	if c.Group == "" {
		c.Group = "DEFAULT_GROUP"
	}
	if c.TimeoutMs == 0 {
		c.TimeoutMs = 5000
	}
	if c.CacheDir == "" {
		c.CacheDir = "nacos/cache"
	}
	if c.LogDir == "" {
		c.LogDir = "nacos/log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

func serverConfigs(addrs []string) ([]constant.ServerConfig, error) {
	if len(addrs) == 0 {
		return nil, errs.ErrArgs.WrapMsg("nacos servers empty")
	}
	out := make([]constant.ServerConfig, 0, len(addrs))
	for _, a := range addrs {
		host, p, err := net.SplitHostPort(a)
		if err != nil {
			return nil, errs.ErrArgs.WrapMsg("bad nacos server", "addr", a, "err", err)
		}
		port, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, errs.ErrArgs.WrapMsg("bad nacos port", "addr", a)
		}
		out = append(out, *constant.NewServerConfig(host, port))
	}
	return out, nil
}

func clientConfig(c Config) *constant.ClientConfig {
	return constant.NewClientConfig(
		constant.WithNamespaceId(c.NamespaceID),
		constant.WithTimeoutMs(c.TimeoutMs),
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogLevel(c.LogLevel),
		constant.WithCacheDir(c.CacheDir),
		constant.WithLogDir(c.LogDir),
		constant.WithUsername(c.Username),
		constant.WithPassword(c.Password),
	)
}

func newConfigClient(c Config) (configClient, error) {
	servers, err := serverConfigs(c.Servers)
	if err != nil {
		return nil, err
	}
	cli, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  clientConfig(c),
		ServerConfigs: servers,
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "create nacos config client")
	}
	return cli, nil
}
