// Package config loads the YAML-file configuration recognized by both
// composition roots: operating mode, per-state staleness TTLs, storage and
// runner coordinates, and the HTTP surface's listen address.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dukex/styxgo/pkg/models"
)

// Mode selects between development (in-memory stores, local docker runner)
// and production (Postgres-backed stores; the Kubernetes runner when
// runner.kubernetes is set, otherwise the local docker runner) wiring in
// the composition roots.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
)

// DefaultStaleStateTTL is used for any state.State not present in the
// configured StaleStateTTLs map.
const DefaultStaleStateTTL = "default"

// File is the on-disk shape of the YAML configuration file, grounded on
// pkg/config's YAML-file-plus-struct-tag pattern.
type File struct {
	Mode Mode `yaml:"mode"`

	// StaleStateTTLs maps a models.State name (or the literal "default") to
	// an ISO-8601 duration string, e.g. "PT1H". Consulted by the scheduler
	// tick to decide when an active RunState has gone stale.
	StaleStateTTLs map[string]string `yaml:"stale_state_ttls"`

	SchedulerTickInterval      string `yaml:"scheduler_tick_interval"`
	TriggerManagerTickInterval string `yaml:"trigger_manager_tick_interval"`
	RuntimeConfigTickInterval  string `yaml:"runtime_config_tick_interval"`

	StateManagerShards int `yaml:"state_manager_shards"`
	HandlerPoolSize    int `yaml:"handler_pool_size"`

	// RetryBaseDelay and RetryMaxExponent feed runstate.RetryDelay.
	// RetryCeiling caps the computed delay. MaxRetries is the retry count
	// at which the TerminationHandler gives up and fails the instance
	// instead of scheduling another retry.
	RetryBaseDelay   string `yaml:"retry_base_delay"`
	RetryMaxExponent int    `yaml:"retry_max_exponent"`
	RetryCeiling     string `yaml:"retry_ceiling"`
	MaxRetries       int    `yaml:"max_retries"`

	// ExecutionPollInterval is how often the runner is polled for a
	// submitted execution's status between SUBMITTED and DONE/TERMINATED.
	ExecutionPollInterval string `yaml:"execution_poll_interval"`

	HTTPAddr string `yaml:"http_addr"`

	Storage StorageCoordinates `yaml:"storage"`
	Runner  RunnerCoordinates  `yaml:"runner"`
}

// StorageCoordinates locates the Postgres-backed event log and backfill
// store.
type StorageCoordinates struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// RunnerCoordinates locates the container runner adapter: a local Docker
// daemon in development mode, or a Kubernetes cluster in production.
type RunnerCoordinates struct {
	Kubernetes *KubernetesCoordinates `yaml:"kubernetes,omitempty"`
	DockerHost string                 `yaml:"docker_host,omitempty"`
}

// KubernetesCoordinates names the cluster and namespace executions are
// submitted to.
type KubernetesCoordinates struct {
	ProjectID string `yaml:"project_id"`
	Zone      string `yaml:"zone"`
	ClusterID string `yaml:"cluster_id"`
	Namespace string `yaml:"namespace"`
}

// Load reads and parses a YAML configuration file and fills in defaults
// for unset mode, tick intervals, shard and pool sizes, HTTP address,
// retry settings and poll interval.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	f.applyDefaults()

	return f, nil
}

func (f *File) applyDefaults() {
	if f.Mode == "" {
		f.Mode = ModeDevelopment
	}
	if f.SchedulerTickInterval == "" {
		f.SchedulerTickInterval = "PT2S"
	}
	if f.TriggerManagerTickInterval == "" {
		f.TriggerManagerTickInterval = "PT1S"
	}
	if f.RuntimeConfigTickInterval == "" {
		f.RuntimeConfigTickInterval = "PT5S"
	}
	if f.StateManagerShards == 0 {
		f.StateManagerShards = 16
	}
	if f.HandlerPoolSize == 0 {
		f.HandlerPoolSize = 64
	}
	if f.HTTPAddr == "" {
		f.HTTPAddr = ":8080"
	}
	if f.RetryBaseDelay == "" {
		f.RetryBaseDelay = "PT10S"
	}
	if f.RetryMaxExponent == 0 {
		f.RetryMaxExponent = 6
	}
	if f.RetryCeiling == "" {
		f.RetryCeiling = "PT1H"
	}
	if f.MaxRetries == 0 {
		f.MaxRetries = 10
	}
	if f.ExecutionPollInterval == "" {
		f.ExecutionPollInterval = "PT2S"
	}
}

// StaleTTL returns the configured staleness TTL for a state, falling back
// to the "default" entry, and finally to one hour if neither is set.
func (f File) StaleTTL(s models.State) (time.Duration, error) {
	raw, ok := f.StaleStateTTLs[string(s)]
	if !ok {
		raw, ok = f.StaleStateTTLs[DefaultStaleStateTTL]
	}
	if !ok || raw == "" {
		return time.Hour, nil
	}
	return ParseISO8601Duration(raw)
}
