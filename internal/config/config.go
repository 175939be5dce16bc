// Package config loads process-wide settings the way the teacher's
// myConfigParser does (cmd/b2bua_radius/my_config_parser.go): a declarative
// table of named options, each bound to a struct field pointer and a
// default, read out of an INI file via gookit/ini/v2. caarlos0/env/v11 then
// overlays environment variables (the ini package has no notion of env
// precedence) and joho/godotenv optionally seeds the process environment
// from a .env file before that overlay runs.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gookit/ini/v2"
	"github.com/joho/godotenv"

	ctrlsession "github.com/dialplan-gateway/ctrlsession/internal/session"
)

const iniSection = "general"

// Settings is the process-wide configuration: the bus/admin addresses and
// node name live here, while the per-call timer durations are lifted into
// session.Config for direct use by every Session.
type Settings struct {
	RedisAddr        string `env:"CTRLSESSION_REDIS_ADDR"`
	AdminSocket      string `env:"CTRLSESSION_ADMIN_SOCKET"`
	MetricsAddr      string `env:"CTRLSESSION_METRICS_ADDR"`
	Node             string `env:"CTRLSESSION_NODE"`
	RegistrySweepCron string `env:"CTRLSESSION_SWEEP_CRON"`

	SanityCheckSeconds   int      `env:"CTRLSESSION_SANITY_CHECK_SECONDS"`
	NodeDownSeconds      int      `env:"CTRLSESSION_NODE_DOWN_SECONDS"`
	KeepAliveSeconds     int      `env:"CTRLSESSION_KEEP_ALIVE_SECONDS"`
	PostHangupSafeApps   []string `env:"CTRLSESSION_POST_HANGUP_SAFE_APPS" envSeparator:","`

	boolOpts []boolOpt
	intOpts  []intOpt
	strOpts  []strOpt
}

type boolOpt struct {
	name   string
	ptr    *bool
	defVal bool
}

type intOpt struct {
	name   string
	ptr    *int
	defVal int
}

type strOpt struct {
	name   string
	ptr    *string
	defVal string
}

// Load mirrors NewMyConfigParser's shape: seed defaults, register the option
// table, parse the INI file at path, then let environment variables (and
// optionally a .env file at dotenvPath) override anything the INI set.
func Load(path, dotenvPath string) (*Settings, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil {
			return nil, fmt.Errorf("load dotenv %s: %w", dotenvPath, err)
		}
	}

	s := &Settings{
		RedisAddr:         "127.0.0.1:6379",
		AdminSocket:       "/var/run/ctrlsession.sock",
		MetricsAddr:       ":9090",
		Node:              "freeswitch@localhost",
		RegistrySweepCron: "*/30 * * * * *",
		SanityCheckSeconds: 30,
		NodeDownSeconds:    8,
		KeepAliveSeconds:   2,
		PostHangupSafeApps: []string{"hangup"},
	}
	s.strOpts = []strOpt{
		{"redis_addr", &s.RedisAddr, s.RedisAddr},
		{"admin_socket", &s.AdminSocket, s.AdminSocket},
		{"metrics_addr", &s.MetricsAddr, s.MetricsAddr},
		{"node", &s.Node, s.Node},
		{"registry_sweep_cron", &s.RegistrySweepCron, s.RegistrySweepCron},
	}
	s.intOpts = []intOpt{
		{"sanity_check_seconds", &s.SanityCheckSeconds, s.SanityCheckSeconds},
		{"node_down_seconds", &s.NodeDownSeconds, s.NodeDownSeconds},
		{"keep_alive_seconds", &s.KeepAliveSeconds, s.KeepAliveSeconds},
	}

	if path != "" {
		if err := ini.LoadExists(path); err != nil {
			return nil, fmt.Errorf("load ini %s: %w", path, err)
		}
		for _, o := range s.strOpts {
			*o.ptr = ini.String(iniSection+"."+o.name, o.defVal)
		}
		for _, o := range s.intOpts {
			*o.ptr = ini.Int(iniSection+"."+o.name, o.defVal)
		}
		for _, o := range s.boolOpts {
			*o.ptr = ini.Bool(iniSection+"."+o.name, o.defVal)
		}
	}

	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}
	return s, nil
}

// SessionConfig lifts the timer/allowlist settings into session.Config.
func (s *Settings) SessionConfig() ctrlsession.Config {
	safe := make(map[string]bool, len(s.PostHangupSafeApps))
	for _, app := range s.PostHangupSafeApps {
		safe[app] = true
	}
	return ctrlsession.Config{
		SanityCheckPeriod:   time.Duration(s.SanityCheckSeconds) * time.Second,
		NodeDownTimeout:     time.Duration(s.NodeDownSeconds) * time.Second,
		PostHangupKeepAlive: time.Duration(s.KeepAliveSeconds) * time.Second,
		PostHangupSafeApps:  safe,
	}
}
