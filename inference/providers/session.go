package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// NewSessionOptions builds session options for the configured execution provider.
//
// Order of operations:
//  1. Threading: intra- and inter-op parallelism, zero lets the runtime decide.
//  2. Graph optimization: extended rewrites such as fusion and constant folding.
//  3. Execution provider: CUDA, with the arena capped by the memory fraction.
//
// The caller owns the result and must Destroy it once the session has been created.
//
// Arguments:
//   - cfg: The provider configuration.
//
// Returns:
//   - *ort.SessionOptions: The session options.
//   - error: An error if the configuration is invalid or the runtime rejects an option.
func NewSessionOptions(cfg Config) (*ort.SessionOptions, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := configure(options, cfg); err != nil {
		_ = options.Destroy()
		return nil, err
	}
	return options, nil
}

func configure(options *ort.SessionOptions, cfg Config) error {
	if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
		return errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
		return errors.Wrap(err, "error setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "error setting graph optimization level")
	}

	if cfg.Backend != CUDAProviderBackend {
		return nil
	}

	cuda, err := cfg.CUDAOptions().ToNativeProviderOptions()
	if err != nil {
		return err
	}
	defer cuda.Destroy()

	if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
		return errors.Wrap(err, "error enabling CUDA")
	}
	return nil
}
