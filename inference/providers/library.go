package providers

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// LibraryPathEnv names the environment variable that overrides the shared library location.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var (
	envOnce sync.Once
	envErr  error
)

// GetSharedLibPath returns the path to the shared library for the current platform.
//
// An explicit override wins, then LibraryPathEnv, then the platform default under third_party/.
//
// Arguments:
//   - override: A configured path, may be empty.
//
// Returns:
//   - string: The path to the shared library.
func GetSharedLibPath(override string) string {
	if override != "" {
		return override
	}
	if p := os.Getenv(LibraryPathEnv); p != "" {
		return p
	}

	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}

// InitializeEnvironment loads the onnxruntime shared library and prepares the process-wide
// environment. Only the first call does any work; later calls return its result.
//
// Arguments:
//   - libPath: The shared library to load.
//
// Returns:
//   - error: An error if the library is missing or fails to initialize.
func InitializeEnvironment(libPath string) error {
	envOnce.Do(func() {
		if _, err := os.Stat(libPath); err != nil {
			envErr = errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
			return
		}

		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = errors.Wrap(err, "error initializing ORT environment")
		}
	})
	return envErr
}
