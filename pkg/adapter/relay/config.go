package relay

import (
	"fmt"
	"net"
	"time"

	"github.com/marmos91/tcprelay/internal/bytesize"
	"github.com/marmos91/tcprelay/pkg/bufpool"
)

const (
	DefaultPort          = 8888
	DefaultBacklog       = 128
	DefaultWorkers       = 4
	DefaultReadChunkSize = bytesize.ByteSize(bufpool.DefaultScratchSize)
	DefaultEventBatch    = 128
)

// Config configures the relay adapter.
//
// Zero values other than Port are replaced by defaults in New. Port 0 binds
// an ephemeral port; DefaultConfig uses 8888.
type Config struct {
	// BindAddress is the local IP to listen on. IPv6 addresses select an
	// IPv6 socket. Default: 0.0.0.0.
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address" validate:"omitempty,ip" json:"bind_address"`

	// Port is the TCP port to listen on. 0 picks an ephemeral port.
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535" json:"port"`

	// Workers is the fixed number of worker goroutines executing read and
	// write tasks. Default: 4.
	Workers int `mapstructure:"workers" yaml:"workers" validate:"min=0,max=1024" json:"workers"`

	// Backlog is the listen backlog. Default: 128.
	Backlog int `mapstructure:"backlog" yaml:"backlog" validate:"min=0" json:"backlog"`

	// ReadChunkSize is the size of the scratch buffer a read task drains
	// the socket with. Default: 1KiB.
	ReadChunkSize bytesize.ByteSize `mapstructure:"read_chunk_size" yaml:"read_chunk_size" json:"read_chunk_size"`

	// EventBatch is the maximum number of readiness events harvested per
	// wait. Default: 128.
	EventBatch int `mapstructure:"event_batch" yaml:"event_batch" validate:"min=0" json:"event_batch"`

	// MetricsLogInterval is the interval at which connection counts are
	// logged. 0 disables periodic logging.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" yaml:"metrics_log_interval" validate:"min=0" json:"metrics_log_interval"`

	// ShutdownTimeout bounds Stop. It is copied from the server-wide
	// shutdown timeout rather than configured per adapter.
	ShutdownTimeout time.Duration `mapstructure:"-" yaml:"-" json:"-"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	c := Config{Port: DefaultPort}
	c.applyDefaults()
	return c
}

// applyDefaults fills in zero values.
func (c *Config) applyDefaults() {
	if c.BindAddress == "" {
		c.BindAddress = "0.0.0.0"
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Backlog <= 0 {
		c.Backlog = DefaultBacklog
	}
	if c.ReadChunkSize == 0 {
		c.ReadChunkSize = DefaultReadChunkSize
	}
	if c.EventBatch <= 0 {
		c.EventBatch = DefaultEventBatch
	}
}

func (c *Config) validate() error {
	if net.ParseIP(c.BindAddress) == nil {
		return fmt.Errorf("invalid bind address %q", c.BindAddress)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.ReadChunkSize > 16*bytesize.MiB {
		return fmt.Errorf("read chunk size %s too large: must be at most 16MiB", c.ReadChunkSize)
	}
	return nil
}
