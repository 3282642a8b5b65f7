//go:build linux

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelab/bgpd/pkg/log"
	"github.com/routelab/bgpd/pkg/server"
)

func sessionKeys(s *server.BgpServer) []string {
	var keys []string
	for _, session := range s.Sessions() {
		keys = append(keys, session.Key())
	}
	return keys
}

func TestInitialAndUpdateConfig(t *testing.T) {
	c := DefaultConfig()
	c.Global.Config.Port = DEFAULT_LISTEN_DISABLE
	c.Neighbors[0].Config.NeighborAddress = "127.0.0.1"
	c.Neighbors[0].Transport.Config.RemotePort = 1

	s := server.NewBgpServer(append(ServerOptions(c), server.LoggerOption(log.NewTestLogger()))...)
	require.NoError(t, s.Start())
	defer s.Stop()

	current, err := InitialConfig(s, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:1"}, sessionKeys(s))

	next := DefaultConfig()
	next.Global.Config.Port = DEFAULT_LISTEN_DISABLE
	next.Neighbors[0].Config.NeighborAddress = "127.0.0.1"
	next.Neighbors[0].Transport.Config.RemotePort = 2
	current, err = UpdateConfig(s, current, next)
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:2"}, sessionKeys(s))

	before, ok := s.Session("127.0.0.1", 2)
	require.True(t, ok)
	next.Neighbors[0].Timers.Config.ConnectRetry = 30
	_, err = UpdateConfig(s, current, next)
	require.NoError(t, err)
	after, ok := s.Session("127.0.0.1", 2)
	require.True(t, ok)
	assert.NotEqual(t, before.ID, after.ID)
	assert.Equal(t, "30s", after.Interval().String())
}
