// Package envconfig reads tensorcore settings from the environment.
//
// Every setting is a function so that tests can change the environment with
// t.Setenv and observe the new value.
package envconfig

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

// Var returns the trimmed value of the environment variable key, with
// surrounding quotes removed.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// Bool returns a getter that reads key as a boolean, defaulting to false.
// Any non-empty value that does not parse counts as true.
func Bool(key string) func() bool {
	return func() bool {
		if s := Var(key); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return false
	}
}

// Uint returns a getter that reads key as an unsigned integer.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			n, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				klog.Warningf("invalid environment variable %s=%q, using default %d", key, s, defaultValue)
				return defaultValue
			}
			return uint(n)
		}
		return defaultValue
	}
}

// Bytes returns a getter that reads key as a byte size. Both plain numbers
// and humanized forms ("64MiB", "2 GB") are accepted.
func Bytes(key string, defaultValue uint64) func() uint64 {
	return func() uint64 {
		if s := Var(key); s != "" {
			n, err := humanize.ParseBytes(s)
			if err != nil {
				klog.Warningf("invalid environment variable %s=%q, using default %s", key, s, humanize.IBytes(defaultValue))
				return defaultValue
			}
			return n
		}
		return defaultValue
	}
}

var (
	// NumThreads bounds the number of goroutines a kernel fans out to.
	NumThreads = Uint("TENSORCORE_NUM_THREADS", uint(runtime.NumCPU()))

	// MinChunk is the smallest number of elements handed to one worker.
	MinChunk = Uint("TENSORCORE_MIN_CHUNK", 4096)

	// MmapThreshold is the host allocation size at which buffers move from
	// the Go heap to anonymous memory mappings.
	MmapThreshold = Bytes("TENSORCORE_MMAP_THRESHOLD", 1<<20)

	// HostMemoryLimit caps live host tensor memory. Zero means unlimited.
	HostMemoryLimit = Bytes("TENSORCORE_HOST_MEMORY_LIMIT", 0)
)

// Accelerator selects the accelerator runtime: "auto", "webgpu",
// "simulated" or "off".
func Accelerator() string {
	s := strings.ToLower(Var("TENSORCORE_ACCELERATOR"))
	switch s {
	case "":
		return "auto"
	case "auto", "webgpu", "simulated", "off":
		return s
	default:
		klog.Warningf("invalid environment variable TENSORCORE_ACCELERATOR=%q, using auto", s)
		return "auto"
	}
}

// EnvVar describes one setting for display.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every setting with its current value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"TENSORCORE_NUM_THREADS":       {"TENSORCORE_NUM_THREADS", NumThreads(), "Maximum goroutines per kernel"},
		"TENSORCORE_MIN_CHUNK":         {"TENSORCORE_MIN_CHUNK", MinChunk(), "Minimum elements per kernel worker"},
		"TENSORCORE_MMAP_THRESHOLD":    {"TENSORCORE_MMAP_THRESHOLD", humanize.IBytes(MmapThreshold()), "Host buffers at or above this size are memory mapped"},
		"TENSORCORE_HOST_MEMORY_LIMIT": {"TENSORCORE_HOST_MEMORY_LIMIT", HostMemoryLimit(), "Live host tensor memory limit in bytes (0 = unlimited)"},
		"TENSORCORE_ACCELERATOR":       {"TENSORCORE_ACCELERATOR", Accelerator(), "Accelerator runtime: auto, webgpu, simulated or off"},
	}
}
