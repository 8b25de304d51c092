package spec

import "time"

// Config is the on-disk gateway configuration.
type Config struct {
	Upstream UpstreamConfig `yaml:"upstream"`
	Quota    QuotaConfig    `yaml:"quota"`
	Cores    int            `yaml:"cores"`
	Policy   PolicyConfig   `yaml:"policy"`
	Pool     PoolConfig     `yaml:"pool"`
	Journal  JournalConfig  `yaml:"journal"`
	Stats    StatsConfig    `yaml:"stats"`
	Log      LogConfig      `yaml:"log"`
}

type UpstreamConfig struct {
	BaseURL   string            `yaml:"base_url"`
	Timeout   time.Duration     `yaml:"timeout"`
	Headers   map[string]string `yaml:"headers"`
	ProbePath string            `yaml:"probe_path"`
}

type QuotaConfig struct {
	Count  int           `yaml:"count"`
	Window time.Duration `yaml:"window"`
}

type PolicyConfig struct {
	Critical   []string    `yaml:"critical"`
	StatusRuns []RunConfig `yaml:"status_runs"`
	ErrorRuns  []RunConfig `yaml:"error_runs"`
}

type RunConfig struct {
	Keys      []string `yaml:"keys"`
	Threshold int      `yaml:"threshold"`
}

type PoolConfig struct {
	Servants          int           `yaml:"servants"`
	KeepAlive         bool          `yaml:"keep_alive"`
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

type StatsConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	Prefix    string        `yaml:"prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Batch is a file of named upstream requests submitted together.
type Batch struct {
	Requests []BatchRequest `yaml:"requests"`
}

type BatchRequest struct {
	Name string   `yaml:"name"`
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
}
