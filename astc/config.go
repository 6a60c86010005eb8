// Configuration for the tc utility

package astc

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/go-yaml/yaml"
)

// The configuration is stored in one object to make it easy to load it from a
// file. The file is optional; most invocations run on built-in defaults and a
// few parameters can be overridden by command line arguments.
//
// The decreasing order of precedence for parameter values:
//   - command line arg (if applicable)
//   - config file
//   - built-in default
//
// Notes:
//  1. Each component will have its specific configuration, which may be
//     defined elsewhere, for instance in the files(s) providing the implementation.
// 2. The object will be loaded from a YAML file, therefore all configuration
//    parameters should be public and they should have tag annotations.

const (
	DEFAULT_PROCFS_ROOT = "/proc"

	// Netlink socket receive buffer size, units.RAMInBytes format; empty or
	// "0" leaves the OS default in place:
	NETLINK_CONFIG_RECEIVE_BUFFER_SIZE_DEFAULT = ""

	WATCH_CONFIG_INTERVAL_DEFAULT = "1s"
)

type NetlinkConfig struct {
	// Receive buffer size for the rtnetlink socket, e.g. "256k":
	ReceiveBufferSize string `yaml:"receive_buffer_size"`
}

type WatchConfig struct {
	// How often to refresh, in time.ParseDuration() format:
	Interval string `yaml:"interval"`
	// Whether to include /proc/net/dev rx/tx rates or not:
	NetDev bool `yaml:"netdev"`
	// Whether to render the compact one line per interface table, based on
	// the per interface root qdisc, instead of the full qdisc list:
	Brief bool `yaml:"brief"`
}

type AstcConfig struct {
	NetlinkConfig *NetlinkConfig `yaml:"netlink_config"`
	WatchConfig   *WatchConfig   `yaml:"watch_config"`
	LoggerConfig  *LoggerConfig  `yaml:"log_config"`
	// The location of procfs, normally /proc; it may be changed for testing
	// or for a container mounting the host's /proc elsewhere:
	ProcfsRoot string `yaml:"procfs_root"`
}

var astcConfigFile = flag.String(
	"config",
	"",
	`Config file to load`,
)

var ErrConfigFileArgNotProvided = errors.New("config file arg not provided")

func DefaultNetlinkConfig() *NetlinkConfig {
	return &NetlinkConfig{
		ReceiveBufferSize: NETLINK_CONFIG_RECEIVE_BUFFER_SIZE_DEFAULT,
	}
}

func DefaultWatchConfig() *WatchConfig {
	return &WatchConfig{
		Interval: WATCH_CONFIG_INTERVAL_DEFAULT,
	}
}

func DefaultAstcConfig() *AstcConfig {
	return &AstcConfig{
		NetlinkConfig: DefaultNetlinkConfig(),
		WatchConfig:   DefaultWatchConfig(),
		ProcfsRoot:    DEFAULT_PROCFS_ROOT,
	}
}

func LoadAstcConfig(cfgFile string) (*AstcConfig, error) {
	f, err := os.Open(cfgFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	cfg := DefaultAstcConfig()
	err = decoder.Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("file: %q: %v", cfgFile, err)
	}
	return cfg, nil
}

func LoadAstcConfigFromArgs() (*AstcConfig, error) {
	if *astcConfigFile != "" {
		return LoadAstcConfig(*astcConfigFile)
	} else {
		return nil, ErrConfigFileArgNotProvided
	}
}
