package config

import (
	"fmt"
	"io"
	"reflect"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/routelab/bgpd/pkg/log"
	"github.com/routelab/bgpd/pkg/server"
)

// ReadConfigFile parses a config file into a BgpConfigSet which can be applied
// using InitialConfig and UpdateConfig.
func ReadConfigFile(configFile, configType string) (*BgpConfigSet, error) {
	c := &BgpConfigSet{}
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType(configType)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}
	if err := SetDefaultConfigValues(v, c); err != nil {
		return nil, err
	}
	if err := Validate(c); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", configFile, err)
	}
	return c, nil
}

// WatchConfigFile calls the callback function anytime an update to the
// config file is detected.
func WatchConfigFile(configFile, configType string, callBack func()) {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType(configType)
	v.OnConfigChange(func(e fsnotify.Event) {
		callBack()
	})
	v.WatchConfig()
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *BgpConfigSet {
	c := &BgpConfigSet{
		Global: Global{
			Config: GlobalConfig{
				As:       64512,
				RouterId: "192.0.2.1",
			},
		},
		Neighbors: []Neighbor{
			{
				Config: NeighborConfig{
					NeighborAddress: "192.0.2.2",
					PeerAs:          64513,
				},
			},
		},
	}
	SetDefaultConfigValues(nil, c)
	return c
}

// WriteConfig renders c in the TOML layout ReadConfigFile accepts.
func WriteConfig(w io.Writer, c *BgpConfigSet) error {
	return toml.NewEncoder(w).Encode(c)
}

// ServerOptions maps the global section onto server options.
func ServerOptions(c *BgpConfigSet) []server.ServerOption {
	addr := DEFAULT_LOCAL_ADDRESS
	if len(c.Global.Config.LocalAddressList) > 0 {
		addr = c.Global.Config.LocalAddressList[0]
	}
	return []server.ServerOption{
		server.ListenOption(addr, c.Global.Config.Port),
	}
}

func inSlice(n Neighbor, b []Neighbor) int {
	for i, nb := range b {
		if nb.Key() == n.Key() {
			return i
		}
	}
	return -1
}

func addNeighbors(bgpServer *server.BgpServer, added []Neighbor) {
	for _, n := range added {
		bgpServer.Logger().Info("Add Peer",
			log.Fields{
				"Topic": "config",
				"Key":   n.Key(),
			})
		if _, err := bgpServer.NewSession(n.Config.NeighborAddress, n.Transport.Config.RemotePort, n.ConnectRetryInterval()); err != nil {
			bgpServer.Logger().Error("Failed to add Peer",
				log.Fields{
					"Topic": "config",
					"Key":   n.Key(),
					"Error": err,
				})
		}
	}
}

func deleteNeighbors(bgpServer *server.BgpServer, deleted []Neighbor) {
	for _, n := range deleted {
		bgpServer.Logger().Info("Delete Peer",
			log.Fields{
				"Topic": "config",
				"Key":   n.Key(),
			})
		if err := bgpServer.RemoveSession(n.Config.NeighborAddress, n.Transport.Config.RemotePort); err != nil {
			bgpServer.Logger().Error("Failed to delete Peer",
				log.Fields{
					"Topic": "config",
					"Key":   n.Key(),
					"Error": err,
				})
		}
	}
}

// InitialConfig starts one session per configured neighbor on a started
// server.
func InitialConfig(bgpServer *server.BgpServer, newConfig *BgpConfigSet) (*BgpConfigSet, error) {
	addNeighbors(bgpServer, newConfig.Neighbors)
	return newConfig, nil
}

// UpdateConfig applies the neighbor differences between c and newConfig.
// The global section cannot be changed at runtime.
func UpdateConfig(bgpServer *server.BgpServer, c, newConfig *BgpConfigSet) (*BgpConfigSet, error) {
	added, deleted, updated := diffNeighbors(c.Neighbors, newConfig.Neighbors)
	if !reflect.DeepEqual(c.Global, newConfig.Global) {
		bgpServer.Logger().Warn("global configuration can't be changed at runtime",
			log.Fields{
				"Topic": "config",
			})
	}
	deleteNeighbors(bgpServer, deleted)
	deleteNeighbors(bgpServer, updated)
	addNeighbors(bgpServer, updated)
	addNeighbors(bgpServer, added)

	return &BgpConfigSet{
		Global:    c.Global,
		Neighbors: append([]Neighbor(nil), newConfig.Neighbors...),
	}, nil
}

func diffNeighbors(cur, next []Neighbor) (added, deleted, updated []Neighbor) {
	for _, n := range next {
		if idx := inSlice(n, cur); idx < 0 {
			added = append(added, n)
		} else if cur[idx].Timers != n.Timers {
			updated = append(updated, n)
		}
	}
	for _, n := range cur {
		if inSlice(n, next) < 0 {
			deleted = append(deleted, n)
		}
	}
	return added, deleted, updated
}
