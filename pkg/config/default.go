package config

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/spf13/viper"

	"github.com/routelab/bgpd/pkg/packet/bgp"
)

const (
	DEFAULT_CONNECT_RETRY  = 5
	DEFAULT_LOCAL_ADDRESS  = "0.0.0.0"
	DEFAULT_LISTEN_DISABLE = -1
)

func SetDefaultConfigValues(v *viper.Viper, b *BgpConfigSet) error {
	if v == nil {
		v = viper.New()
	}
	if !v.IsSet("global.config.port") {
		b.Global.Config.Port = bgp.BGP_PORT
	}
	if len(b.Global.Config.LocalAddressList) == 0 {
		b.Global.Config.LocalAddressList = []string{DEFAULT_LOCAL_ADDRESS}
	}
	for idx, n := range b.Neighbors {
		if n.Transport.Config.RemotePort == 0 {
			n.Transport.Config.RemotePort = bgp.BGP_PORT
		}
		if n.Timers.Config.ConnectRetry == 0 {
			n.Timers.Config.ConnectRetry = DEFAULT_CONNECT_RETRY
		}
		b.Neighbors[idx] = n
	}
	return nil
}

// Validate checks a configuration with its defaults applied.
func Validate(b *BgpConfigSet) error {
	var errs []error
	g := b.Global.Config
	if g.As == 0 {
		errs = append(errs, errors.New("global: as must not be zero"))
	}
	if id, err := netip.ParseAddr(g.RouterId); err != nil || !id.Is4() {
		errs = append(errs, fmt.Errorf("global: invalid router-id %q", g.RouterId))
	}
	if g.Port < DEFAULT_LISTEN_DISABLE || g.Port > 0xffff {
		errs = append(errs, fmt.Errorf("global: invalid port %d", g.Port))
	}
	if len(g.LocalAddressList) > 1 {
		errs = append(errs, errors.New("global: only one local address is supported"))
	}
	for _, a := range g.LocalAddressList {
		if _, err := netip.ParseAddr(a); err != nil {
			errs = append(errs, fmt.Errorf("global: invalid local address %q", a))
		}
	}

	seen := make(map[string]struct{}, len(b.Neighbors))
	for _, n := range b.Neighbors {
		addr := n.Config.NeighborAddress
		if _, err := netip.ParseAddr(addr); err != nil {
			errs = append(errs, fmt.Errorf("neighbor: invalid neighbor-address %q", addr))
			continue
		}
		if n.Config.PeerAs == 0 {
			errs = append(errs, fmt.Errorf("neighbor %s: peer-as must not be zero", addr))
		}
		if n.Timers.Config.ConnectRetry < 0 {
			errs = append(errs, fmt.Errorf("neighbor %s: invalid connect-retry %v", addr, n.Timers.Config.ConnectRetry))
		}
		key := n.Key()
		if _, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("neighbor %s: duplicate neighbor", key))
		}
		seen[key] = struct{}{}
	}
	return errors.Join(errs...)
}
