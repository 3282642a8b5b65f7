package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/routelab/bgpd/pkg/packet/bgp"
	"github.com/routelab/bgpd/pkg/server"
)

type bgpCollector struct {
	server *server.BgpServer
}

var (
	peerLabels      = []string{"peer"}
	peerStateLabels = []string{"peer", "session_state"}

	bgpSessionStateDesc       = prometheus.NewDesc("bgp_session_state", "State of the BGP session with peer", peerStateLabels, nil)
	bgpConnectAttemptsDesc    = prometheus.NewDesc("bgp_connect_attempts_total", "Number of outgoing connection attempts to peer", peerLabels, nil)
	bgpConnectFailuresDesc    = prometheus.NewDesc("bgp_connect_failures_total", "Number of failed outgoing connection attempts to peer", peerLabels, nil)
	bgpConnectionDropsDesc    = prometheus.NewDesc("bgp_connection_drops_total", "Number of established connections to peer that were dropped", peerLabels, nil)
	bgpPendingConnectionsDesc = prometheus.NewDesc("bgp_pending_incoming_connections", "Number of accepted connections not associated with a session", nil, nil)
)

func NewBgpCollector(server *server.BgpServer) prometheus.Collector {
	return &bgpCollector{server: server}
}

func (c *bgpCollector) Describe(out chan<- *prometheus.Desc) {
	out <- bgpSessionStateDesc
	out <- bgpConnectAttemptsDesc
	out <- bgpConnectFailuresDesc
	out <- bgpConnectionDropsDesc
	out <- bgpPendingConnectionsDesc
}

func (c *bgpCollector) Collect(out chan<- prometheus.Metric) {
	for _, s := range c.server.Sessions() {
		peer := s.Key()
		stats := s.Stats()

		send := func(desc *prometheus.Desc, cnt uint64) {
			out <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(cnt), peer)
		}
		send(bgpConnectAttemptsDesc, stats.ConnectAttempts)
		send(bgpConnectFailuresDesc, stats.ConnectFailures)
		send(bgpConnectionDropsDesc, stats.Drops)

		current := s.State()
		for st := bgp.BGP_FSM_IDLE; st <= bgp.BGP_FSM_ESTABLISHED; st++ {
			v := 0.0
			if st == current {
				v = 1.0
			}
			out <- prometheus.MustNewConstMetric(bgpSessionStateDesc, prometheus.GaugeValue, v, peer, st.String())
		}
	}
	out <- prometheus.MustNewConstMetric(bgpPendingConnectionsDesc, prometheus.GaugeValue, float64(c.server.PendingConnections()))
}
