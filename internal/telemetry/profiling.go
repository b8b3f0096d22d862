package telemetry

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/grafana/pyroscope-go"
)

// Sampling rates applied when lock or blocking profiles are requested.
// Contention on the connection table lock shows up in mutex profiles, and
// workers parked on the task queue show up in block profiles.
const (
	mutexProfileFraction = 5
	blockProfileRate     = 5
)

// ProfilingConfig contains configuration for Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool

	// ServiceName is the application name shown in Pyroscope.
	ServiceName string

	ServiceVersion string

	// Endpoint is the Pyroscope server URL (e.g., "http://localhost:4040").
	Endpoint string

	// ProfileTypes lists the profiles to collect. See ProfileTypeNames.
	ProfileTypes []string

	// Tags are attached to every profile, e.g. the relay listen address so
	// several relays can share one Pyroscope server.
	Tags map[string]string
}

var (
	profiler         *pyroscope.Profiler
	profilingEnabled bool
)

// InitProfiling starts Pyroscope continuous profiling. The returned
// function stops the profiler and is safe to call when profiling is off.
func InitProfiling(cfg ProfilingConfig) (shutdown func() error, err error) {
	noop := func() error { return nil }

	if !cfg.Enabled {
		profilingEnabled = false
		return noop, nil
	}

	types, err := parseProfileTypes(cfg.ProfileTypes)
	if err != nil {
		return nil, err
	}
	enableRuntimeProfiles(types)

	tags := map[string]string{"version": cfg.ServiceVersion}
	for k, v := range cfg.Tags {
		tags[k] = v
	}

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags:            tags,
		ProfileTypes:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	profiler = p
	profilingEnabled = true

	return func() error {
		profilingEnabled = false
		return p.Stop()
	}, nil
}

// IsProfilingEnabled reports whether a profiler is running.
func IsProfilingEnabled() bool {
	return profilingEnabled
}

var profileTypes = map[string]pyroscope.ProfileType{
	"cpu":            pyroscope.ProfileCPU,
	"alloc_objects":  pyroscope.ProfileAllocObjects,
	"alloc_space":    pyroscope.ProfileAllocSpace,
	"inuse_objects":  pyroscope.ProfileInuseObjects,
	"inuse_space":    pyroscope.ProfileInuseSpace,
	"goroutines":     pyroscope.ProfileGoroutines,
	"mutex_count":    pyroscope.ProfileMutexCount,
	"mutex_duration": pyroscope.ProfileMutexDuration,
	"block_count":    pyroscope.ProfileBlockCount,
	"block_duration": pyroscope.ProfileBlockDuration,
}

// ProfileTypeNames returns the accepted profile type names, sorted.
func ProfileTypeNames() []string {
	names := make([]string, 0, len(profileTypes))
	for name := range profileTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseProfileType maps a configured profile name to its Pyroscope type.
func ParseProfileType(pt string) (pyroscope.ProfileType, error) {
	t, ok := profileTypes[pt]
	if !ok {
		return pyroscope.ProfileCPU, fmt.Errorf("unknown profile type: %s", pt)
	}
	return t, nil
}

// parseProfileTypes maps every configured name, failing on the first
// unknown one.
func parseProfileTypes(names []string) ([]pyroscope.ProfileType, error) {
	types := make([]pyroscope.ProfileType, 0, len(names))
	for _, name := range names {
		t, err := ParseProfileType(name)
		if err != nil {
			return nil, fmt.Errorf("invalid profile type %q: %w", name, err)
		}
		types = append(types, t)
	}
	return types, nil
}

// enableRuntimeProfiles turns on the runtime sampling that mutex and block
// profiles depend on; without it those profiles stay empty.
func enableRuntimeProfiles(types []pyroscope.ProfileType) {
	for _, t := range types {
		switch t {
		case pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration:
			runtime.SetMutexProfileFraction(mutexProfileFraction)
		case pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration:
			runtime.SetBlockProfileRate(blockProfileRate)
		}
	}
}
