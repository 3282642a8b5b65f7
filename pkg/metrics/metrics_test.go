//go:build linux

package metrics

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelab/bgpd/pkg/log"
	"github.com/routelab/bgpd/pkg/packet/bgp"
	"github.com/routelab/bgpd/pkg/server"
)

func getMetric(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestMetrics(t *testing.T) {
	assert, require := assert.New(t), require.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			defer c.Close()
		}
	}()
	port := uint16(ln.Addr().(*net.TCPAddr).Port)

	s := server.NewBgpServer(server.LoggerOption(log.NewTestLogger()), server.ListenOption("127.0.0.1", 0))
	require.NoError(s.Start())
	defer s.Stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewBgpCollector(s))

	session, err := s.NewSession("127.0.0.1", port, 100*time.Millisecond)
	require.NoError(err)
	require.Eventually(func() bool {
		return session.State() == bgp.BGP_FSM_CONNECT
	}, 2*time.Second, 5*time.Millisecond)

	conn, err := net.Dial("tcp", s.ListenAddr().String())
	require.NoError(err)
	defer conn.Close()
	require.Eventually(func() bool {
		return s.PendingConnections() == 1
	}, 2*time.Second, 5*time.Millisecond)

	metrics, err := registry.Gather()
	require.NoError(err)

	state := getMetric(metrics, "bgp_session_state")
	require.NotNil(state)
	require.Len(state.Metric, 5)
	peer := net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port)))
	for _, m := range state.Metric {
		assert.Equal(peer, labelValue(m, "peer"))
		want := 0.0
		if labelValue(m, "session_state") == bgp.BGP_FSM_CONNECT.String() {
			want = 1.0
		}
		assert.Equal(want, m.GetGauge().GetValue())
	}

	attempts := getMetric(metrics, "bgp_connect_attempts_total")
	require.NotNil(attempts)
	require.Len(attempts.Metric, 1)
	assert.GreaterOrEqual(attempts.Metric[0].GetCounter().GetValue(), 1.0)

	pending := getMetric(metrics, "bgp_pending_incoming_connections")
	require.NotNil(pending)
	assert.Equal(1.0, pending.Metric[0].GetGauge().GetValue())
}

func TestMetricsNoSessions(t *testing.T) {
	s := server.NewBgpServer(server.LoggerOption(log.NewTestLogger()), server.ListenOption("127.0.0.1", -1))

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewBgpCollector(s))

	metrics, err := registry.Gather()
	require.NoError(t, err)
	assert.Nil(t, getMetric(metrics, "bgp_session_state"))
	pending := getMetric(metrics, "bgp_pending_incoming_connections")
	require.NotNil(t, pending)
	assert.Equal(t, 0.0, pending.Metric[0].GetGauge().GetValue())
}
