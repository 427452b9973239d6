package nacos

import (
	"errors"
	"testing"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/stretchr/testify/require"
)

type fakeConfigClient struct {
	content  string
	getErr   error
	listened *vo.ConfigParam
	canceled bool
}

func (f *fakeConfigClient) GetConfig(vo.ConfigParam) (string, error) { return f.content, f.getErr }

func (f *fakeConfigClient) ListenConfig(p vo.ConfigParam) error {
	f.listened = &p
	return nil
}

func (f *fakeConfigClient) CancelListenConfig(vo.ConfigParam) error {
	f.canceled = true
	return nil
}

func TestSource_FetchAndWatch(t *testing.T) {
	req := require.New(t)
	cli := &fakeConfigClient{content: "log:\n  level: info\n"}
	s := newSource(cli, "tjoy-gateway.yaml", "DEFAULT_GROUP", nil)

	// Given the first fetch
	got, err := s.Fetch()
	req.NoError(err)
	req.Equal(cli.content, got)
	req.Equal(cli.content, s.Current())

	// When the server pushes a new version
	var pushed string
	req.NoError(s.Watch(func(data string) { pushed = data }))
	req.NotNil(cli.listened)
	req.Equal("tjoy-gateway.yaml", cli.listened.DataId)
	cli.listened.OnChange("", "DEFAULT_GROUP", "tjoy-gateway.yaml", "log:\n  level: warn\n")

	// Then both the callback and Current see it
	req.Equal("log:\n  level: warn\n", pushed)
	req.Equal(pushed, s.Current())

	req.NoError(s.Close())
	req.True(cli.canceled)
}

func TestSource_FetchError(t *testing.T) {
	cli := &fakeConfigClient{getErr: errors.New("boom")}
	s := newSource(cli, "d", "g", nil)
	_, err := s.Fetch()
	require.Error(t, err)
	require.Empty(t, s.Current())
}

func TestServerConfigs(t *testing.T) {
	req := require.New(t)
	sc, err := serverConfigs([]string{"127.0.0.1:8848", "nacos.local:9848"})
	req.NoError(err)
	req.Len(sc, 2)
	req.Equal("nacos.local", sc[1].IpAddr)
	req.Equal(uint64(9848), sc[1].Port)

	_, err = serverConfigs(nil)
	req.Error(err)
	_, err = serverConfigs([]string{"no-port"})
	req.Error(err)
	_, err = serverConfigs([]string{"h:abc"})
	req.Error(err)
}

func TestNewSource_RequiresDataID(t *testing.T) {
	_, err := NewSource(Config{Servers: []string{"127.0.0.1:8848"}}, nil)
	require.Error(t, err)
}
