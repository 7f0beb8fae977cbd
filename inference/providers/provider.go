// Package providers - ONNX Runtime execution provider selection and session options.
package providers

import (
	"github.com/pkg/errors"
)

// ProviderBackend represents different ONNX Runtime execution providers
type ProviderBackend string

const (
	// CPUProviderBackend runs inference on the default CPU execution provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CUDAProviderBackend uses NVIDIA CUDA for inference optimization.
	CUDAProviderBackend ProviderBackend = "cuda"
)

// Backends lists every supported execution provider.
func Backends() []ProviderBackend {
	return []ProviderBackend{CPUProviderBackend, CUDAProviderBackend}
}

// Config selects the execution provider and its resource limits for a session.
type Config struct {
	// Backend specifies the backend to use
	Backend ProviderBackend `json:"backend" koanf:"backend" yaml:"backend"`
	// DeviceID is the GPU ordinal used by the CUDA backend.
	DeviceID int `json:"deviceID" koanf:"deviceid" yaml:"deviceid"`
	// MemFraction is the share of DeviceMemory the session may claim, in (0, 1].
	MemFraction float64 `json:"memFraction" koanf:"memfraction" yaml:"memfraction"`
	// DeviceMemory is the total memory of the device in bytes. Zero means unknown, and no arena
	// limit is passed to the runtime.
	DeviceMemory int64 `json:"deviceMemory" koanf:"devicememory" yaml:"devicememory"`
	// IntraOpThreads sets threads for parallelizing ops. Zero lets the runtime decide.
	IntraOpThreads int `json:"intraOpThreads" koanf:"intraopthreads" yaml:"intraopthreads"`
	// InterOpThreads sets threads for parallelizing independent ops. Zero lets the runtime decide.
	InterOpThreads int `json:"interOpThreads" koanf:"interopthreads" yaml:"interopthreads"`
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string `json:"libraryPath" koanf:"librarypath" yaml:"librarypath"`
}

// DefaultConfig returns a CPU configuration that may use the whole device.
func DefaultConfig() Config {
	return Config{
		Backend:     CPUProviderBackend,
		MemFraction: 1,
	}
}

// Validate reports whether the configuration can be turned into session options.
//
// Returns:
//   - error: An error describing the first invalid field.
func (c Config) Validate() error {
	switch c.Backend {
	case CPUProviderBackend, CUDAProviderBackend:
	default:
		return errors.Errorf("unsupported provider backend %q", c.Backend)
	}
	if c.MemFraction <= 0 || c.MemFraction > 1 {
		return errors.Errorf("memfraction must be in (0, 1], got %g", c.MemFraction)
	}
	if c.DeviceID < 0 {
		return errors.Errorf("deviceid must not be negative, got %d", c.DeviceID)
	}
	if c.DeviceMemory < 0 {
		return errors.Errorf("devicememory must not be negative, got %d", c.DeviceMemory)
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return errors.Errorf("thread counts must not be negative, got intra=%d inter=%d",
			c.IntraOpThreads, c.InterOpThreads)
	}
	return nil
}

// GPUMemLimit converts the memory fraction into an arena limit in bytes.
//
// Returns:
//   - int64: The limit, or 0 when the device memory is unknown or the whole device may be used.
func (c Config) GPUMemLimit() int64 {
	if c.DeviceMemory <= 0 || c.MemFraction <= 0 || c.MemFraction >= 1 {
		return 0
	}
	return int64(c.MemFraction * float64(c.DeviceMemory))
}

// CUDAOptions derives the CUDA provider options from the configuration.
func (c Config) CUDAOptions() CUDAOptions {
	return CUDAOptions{
		DeviceID:              c.DeviceID,
		GPUMemLimit:           c.GPUMemLimit(),
		ArenaExtendStrategy:   ArenaSameAsRequested,
		CudnnConvAlgoSearch:   CudnnConvAlgoHeuristic,
		DoCopyInDefaultStream: true,
	}
}
