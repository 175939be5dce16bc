package session

import "time"

// Config carries the configuration constants §6 calls out: the sanity-check
// period, the maximum wait for a node restart, the post-hangup keep-alive,
// and the post-hangup-safe application allowlist whose source spec §9 leaves
// as an open question to be answered from configuration.
type Config struct {
	SanityCheckPeriod   time.Duration
	NodeDownTimeout     time.Duration
	PostHangupKeepAlive time.Duration
	PostHangupSafeApps  map[string]bool
}

// DefaultConfig answers spec §9's open question with only "hangup" treated
// as safe to run post-hangup, matching the behavior of the commented-out
// predicate in the source this spec was distilled from.
func DefaultConfig() Config {
	return Config{
		SanityCheckPeriod:   30 * time.Second,
		NodeDownTimeout:     8 * time.Second,
		PostHangupKeepAlive: 2 * time.Second,
		PostHangupSafeApps:  map[string]bool{hangupApplication: true},
	}
}

func (c Config) isPostHangupSafe(applicationName string) bool {
	return c.PostHangupSafeApps[applicationName]
}
