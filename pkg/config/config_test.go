package config

import (
	"bytes"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlConfig = `
[global.config]
  as = 64512
  router-id = "192.168.255.1"
  local-address-list = ["127.0.0.1"]

[[neighbors]]
  [neighbors.config]
    neighbor-address = "10.0.255.1"
    peer-as = 65001

[[neighbors]]
  [neighbors.config]
    neighbor-address = "10.0.255.2"
    peer-as = 65002
  [neighbors.timers.config]
    connect-retry = 10
  [neighbors.transport.config]
    remote-port = 10179
`

const yamlConfig = `
global:
  config:
    as: 64512
    router-id: 192.168.255.1
    port: -1
neighbors:
  - config:
      neighbor-address: "2001:db8::1"
      peer-as: 65001
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadConfigFileTOML(t *testing.T) {
	c, err := ReadConfigFile(writeFile(t, "bgpd.toml", tomlConfig), "toml")
	require.NoError(t, err)

	assert.Equal(t, uint32(64512), c.Global.Config.As)
	assert.Equal(t, "192.168.255.1", c.Global.Config.RouterId)
	assert.Equal(t, int32(179), c.Global.Config.Port)
	assert.Equal(t, []string{"127.0.0.1"}, c.Global.Config.LocalAddressList)

	require.Len(t, c.Neighbors, 2)
	assert.Equal(t, "10.0.255.1:179", c.Neighbors[0].Key())
	assert.Equal(t, 5*time.Second, c.Neighbors[0].ConnectRetryInterval())
	assert.Equal(t, "10.0.255.2:10179", c.Neighbors[1].Key())
	assert.Equal(t, 10*time.Second, c.Neighbors[1].ConnectRetryInterval())
}

func TestReadConfigFileYAML(t *testing.T) {
	c, err := ReadConfigFile(writeFile(t, "bgpd.yaml", yamlConfig), "yaml")
	require.NoError(t, err)

	assert.Equal(t, int32(-1), c.Global.Config.Port)
	assert.Equal(t, []string{DEFAULT_LOCAL_ADDRESS}, c.Global.Config.LocalAddressList)
	require.Len(t, c.Neighbors, 1)
	assert.Equal(t, "[2001:db8::1]:179", c.Neighbors[0].Key())
}

func TestReadConfigFileErrors(t *testing.T) {
	_, err := ReadConfigFile(filepath.Join(t.TempDir(), "missing.toml"), "toml")
	assert.Error(t, err)

	_, err = ReadConfigFile(writeFile(t, "bad.toml", "[global.config\nas = 1"), "toml")
	assert.Error(t, err)

	_, err = ReadConfigFile(writeFile(t, "invalid.toml", `
[global.config]
  as = 0
  router-id = "192.168.255.1"
`), "toml")
	assert.ErrorContains(t, err, "as must not be zero")
}

func TestWriteConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteConfig(&buf, DefaultConfig()))

	c, err := ReadConfigFile(writeFile(t, "default.toml", buf.String()), "toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)
}

func TestValidate(t *testing.T) {
	valid := func() *BgpConfigSet {
		return DefaultConfig()
	}
	tests := []struct {
		name   string
		modify func(*BgpConfigSet)
		errMsg string
	}{
		{"valid", func(*BgpConfigSet) {}, ""},
		{"router-id", func(c *BgpConfigSet) { c.Global.Config.RouterId = "2001:db8::1" }, "invalid router-id"},
		{"port", func(c *BgpConfigSet) { c.Global.Config.Port = 70000 }, "invalid port"},
		{"local address", func(c *BgpConfigSet) { c.Global.Config.LocalAddressList = []string{"host"} }, "invalid local address"},
		{"local addresses", func(c *BgpConfigSet) {
			c.Global.Config.LocalAddressList = []string{"127.0.0.1", "::1"}
		}, "only one local address"},
		{"neighbor address", func(c *BgpConfigSet) { c.Neighbors[0].Config.NeighborAddress = "peer" }, "invalid neighbor-address"},
		{"peer-as", func(c *BgpConfigSet) { c.Neighbors[0].Config.PeerAs = 0 }, "peer-as must not be zero"},
		{"connect-retry", func(c *BgpConfigSet) { c.Neighbors[0].Timers.Config.ConnectRetry = -1 }, "invalid connect-retry"},
		{"duplicate", func(c *BgpConfigSet) { c.Neighbors = append(c.Neighbors, c.Neighbors[0]) }, "duplicate neighbor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			err := Validate(c)
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.errMsg)
			}
		})
	}
}

func TestDiffNeighbors(t *testing.T) {
	n := func(addr string, retry float64) Neighbor {
		nb := Neighbor{}
		nb.Config.NeighborAddress = addr
		nb.Config.PeerAs = 65001
		nb.Timers.Config.ConnectRetry = retry
		nb.Transport.Config.RemotePort = 179
		return nb
	}
	cur := []Neighbor{n("10.0.0.1", 5), n("10.0.0.2", 5), n("10.0.0.3", 5)}
	next := []Neighbor{n("10.0.0.1", 5), n("10.0.0.2", 30), n("10.0.0.4", 5)}

	added, deleted, updated := diffNeighbors(cur, next)
	assert.Equal(t, []Neighbor{n("10.0.0.4", 5)}, added)
	assert.Equal(t, []Neighbor{n("10.0.0.3", 5)}, deleted)
	assert.Equal(t, []Neighbor{n("10.0.0.2", 30)}, updated)
}

func TestWatchConfigFile(t *testing.T) {
	path := writeFile(t, "bgpd.toml", tomlConfig)

	var called atomic.Int32
	WatchConfigFile(path, "toml", func() {
		called.Add(1)
	})

	require.Eventually(t, func() bool {
		// rewrite until the watcher is in place
		os.WriteFile(path, []byte(tomlConfig+"\n"), 0o644)
		return called.Load() > 0
	}, 5*time.Second, 100*time.Millisecond)
}
