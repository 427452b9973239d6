package nacos

import (
	"sync"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/tools/errs"
)

// subset of config_client.IConfigClient
type configClient interface {
	GetConfig(param vo.ConfigParam) (string, error)
	ListenConfig(param vo.ConfigParam) error
	CancelListenConfig(param vo.ConfigParam) error
}

// Source serves one YAML document (data-id/group) and pushes its updates.
type Source struct {
	cli    configClient
	dataID string
	group  string
	log    *zap.Logger

	mu      sync.RWMutex
	current string
}

func NewSource(c Config, log *zap.Logger) (*Source, error) {
	c.norm()
	if c.DataID == "" {
		return nil, errs.ErrArgs.WrapMsg("nacos data_id empty")
	}
	cli, err := newConfigClient(c)
	if err != nil {
		return nil, err
	}
	return newSource(cli, c.DataID, c.Group, log), nil
}

func newSource(cli configClient, dataID, group string, log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{cli: cli, dataID: dataID, group: group, log: log}
}

// Fetch reads the document once and caches it.
func (s *Source) Fetch() (string, error) {
	content, err := s.cli.GetConfig(vo.ConfigParam{DataId: s.dataID, Group: s.group})
	if err != nil {
		return "", errs.WrapMsg(err, "nacos get config", "data_id", s.dataID, "group", s.group)
	}
	s.set(content)
	return content, nil
}

// Watch calls onChange with every new version of the document.
func (s *Source) Watch(onChange func(data string)) error {
	err := s.cli.ListenConfig(vo.ConfigParam{
		DataId: s.dataID,
		Group:  s.group,
		OnChange: func(namespace, group, dataId, data string) {
			s.log.Info("nacos config changed", zap.String("data_id", dataId), zap.String("group", group))
			s.set(data)
			if onChange != nil {
				onChange(data)
			}
		},
	})
	return errs.WrapMsg(err, "nacos listen config", "data_id", s.dataID)
}

func (s *Source) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Source) Close() error {
	return s.cli.CancelListenConfig(vo.ConfigParam{DataId: s.dataID, Group: s.group})
}

func (s *Source) set(data string) {
	s.mu.Lock()
	s.current = data
	s.mu.Unlock()
}
