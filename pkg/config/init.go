package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfig is written by InitConfig. Every value matches the default
// so the file documents the knobs without changing behavior.
const sampleConfig = `# relayd Configuration File
#
# Every setting can be overridden with an environment variable:
#   RELAYD_<SECTION>_<KEY>, e.g. RELAYD_RELAY_PORT=9999

logging:
  # DEBUG, INFO, WARN or ERROR
  level: INFO
  # text or json
  format: text
  # stdout, stderr or a file path
  output: stdout

telemetry:
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0
  profiling:
    enabled: false
    endpoint: http://localhost:4040
    profile_types:
      - cpu
      - alloc_objects
      - alloc_space
      - inuse_objects
      - inuse_space
      - goroutines

# Maximum time to wait for in-flight work on shutdown
shutdown_timeout: 30s

relay:
  bind_address: 0.0.0.0
  port: 8888
  # Worker goroutines executing read and write tasks
  workers: 4
  backlog: 128
  # Scratch buffer per read task
  read_chunk_size: 1KiB
  # Readiness events harvested per wait
  event_batch: 128
  # Periodic connection count logging, 0 disables
  metrics_log_interval: 0s

metrics:
  enabled: false
  port: 9090

controlplane:
  enabled: true
  # The API is unauthenticated; keep it on loopback unless fronted by a proxy
  bind_address: 127.0.0.1
  port: 8080
  read_timeout: 10s
  write_timeout: 10s
  idle_timeout: 60s
`

// InitConfig writes the sample configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the sample configuration to path, creating parent
// directories. An existing file is only replaced when force is set.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
