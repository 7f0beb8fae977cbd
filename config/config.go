// Package config loads the application configuration from defaults, a YAML file and the
// environment.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/pkg/errors"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides. DETECT_SSD_MODELPATH sets ssd.modelpath.
const EnvPrefix = "DETECT_"

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "config/config.yaml"

// AppConfig is the complete application configuration.
type AppConfig struct {
	Server  ServerConfig     `koanf:"server"  yaml:"server"`
	Client  ClientConfig     `koanf:"client"  yaml:"client"`
	Log     logger.Config    `koanf:"log"     yaml:"log"`
	Runtime providers.Config `koanf:"runtime" yaml:"runtime"`
	SSD     SSDConfig        `koanf:"ssd"     yaml:"ssd"`
	YOLO    YOLOConfig       `koanf:"yolo"    yaml:"yolo"`
}

// ServerConfig defines HTTP server configurations
type ServerConfig struct {
	Address         string        `koanf:"address"         yaml:"address"`
	ReadTimeout     time.Duration `koanf:"readtimeout"     yaml:"readtimeout"`
	ShutdownTimeout time.Duration `koanf:"shutdowntimeout" yaml:"shutdowntimeout"`
	MaxBodyBytes    int64         `koanf:"maxbodybytes"    yaml:"maxbodybytes"`
	// Detectors lists the detector kinds loaded at startup.
	Detectors []string `koanf:"detectors" yaml:"detectors"`
}

// ClientConfig configures the HTTP client used in remote mode.
type ClientConfig struct {
	BaseURL    string        `koanf:"baseurl"    yaml:"baseurl"`
	Timeout    time.Duration `koanf:"timeout"    yaml:"timeout"`
	RetryCount int           `koanf:"retrycount" yaml:"retrycount"`
}

// SSDConfig configures the SSD adapter.
type SSDConfig struct {
	ModelPath string `koanf:"modelpath" yaml:"modelpath"`
	// MemFraction is the share of GPU memory the session may claim.
	MemFraction     float64 `koanf:"memfraction"     yaml:"memfraction"`
	SelectThreshold float32 `koanf:"selectthreshold" yaml:"selectthreshold"`
	NMSThreshold    float32 `koanf:"nmsthreshold"    yaml:"nmsthreshold"`
	TopK            int     `koanf:"topk"            yaml:"topk"`
	// InputSize is the square side of the network input.
	InputSize  int    `koanf:"inputsize"  yaml:"inputsize"`
	NumAnchors int    `koanf:"numanchors" yaml:"numanchors"`
	NumClasses int    `koanf:"numclasses" yaml:"numclasses"`
	InputName  string `koanf:"inputname"  yaml:"inputname"`
	ScoresName string `koanf:"scoresname" yaml:"scoresname"`
	BoxesName  string `koanf:"boxesname"  yaml:"boxesname"`
}

// YOLOConfig configures the YOLO adapter.
type YOLOConfig struct {
	WeightsPath string `koanf:"weightspath" yaml:"weightspath"`
	ConfigPath  string `koanf:"configpath"  yaml:"configpath"`
	// NamesPath is a darknet .names file. Empty uses the COCO classes.
	NamesPath    string  `koanf:"namespath"    yaml:"namespath"`
	MemFraction  float64 `koanf:"memfraction"  yaml:"memfraction"`
	Threshold    float32 `koanf:"threshold"    yaml:"threshold"`
	NMSThreshold float32 `koanf:"nmsthreshold" yaml:"nmsthreshold"`
	InputSize    int     `koanf:"inputsize"    yaml:"inputsize"`
	// Backend is "cpu" or "cuda".
	Backend string `koanf:"backend" yaml:"backend"`
}

// defaults are loaded before the file and the environment.
var defaults = map[string]any{
	"server.address":         ":8080",
	"server.readtimeout":     "30s",
	"server.shutdowntimeout": "10s",
	"server.maxbodybytes":    10 << 20,
	"server.detectors":       []string{"ssd", "yolo"},

	"client.baseurl":    "http://localhost:8080",
	"client.timeout":    "30s",
	"client.retrycount": 2,

	"log.mode":  logger.ModeProduction,
	"log.level": "info",

	"runtime.backend":     string(providers.CPUProviderBackend),
	"runtime.memfraction": 1.0,

	"ssd.modelpath":       "model_files/ssd_300_vgg.onnx",
	"ssd.memfraction":     1.0,
	"ssd.selectthreshold": 0.5,
	"ssd.nmsthreshold":    0.45,
	"ssd.topk":            400,
	"ssd.inputsize":       300,
	"ssd.numanchors":      8732,
	"ssd.numclasses":      21,
	"ssd.inputname":       "images",
	"ssd.scoresname":      "scores",
	"ssd.boxesname":       "boxes",

	"yolo.weightspath":  "model_files/yolo.weights",
	"yolo.configpath":   "model_files/yolo.cfg",
	"yolo.memfraction":  1.0,
	"yolo.threshold":    0.1,
	"yolo.nmsthreshold": 0.4,
	"yolo.inputsize":    416,
	"yolo.backend":      "cpu",
}

// Load builds the configuration. A missing file at path is an error unless path is empty.
//
// Arguments:
//   - path: The YAML file to load, may be empty.
//
// Returns:
//   - *AppConfig: The merged and validated configuration.
//   - error: An error if a source fails to load or the result is invalid.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
		if strings.Contains(v, ",") {
			return key, strings.Split(strings.TrimSpace(v), ",")
		}
		return key, v
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault loads DefaultPath when it exists and the defaults otherwise.
func LoadDefault() (*AppConfig, error) {
	if _, err := os.Stat(DefaultPath); err != nil {
		return Load("")
	}
	return Load(DefaultPath)
}

// Validate checks the ranges that the adapters rely on.
func (c *AppConfig) Validate() error {
	if err := c.Runtime.Validate(); err != nil {
		return errors.Wrap(err, "runtime")
	}
	if c.SSD.MemFraction <= 0 || c.SSD.MemFraction > 1 {
		return errors.Errorf("ssd.memfraction must be in (0, 1], got %g", c.SSD.MemFraction)
	}
	if c.YOLO.MemFraction <= 0 || c.YOLO.MemFraction > 1 {
		return errors.Errorf("yolo.memfraction must be in (0, 1], got %g", c.YOLO.MemFraction)
	}
	if c.SSD.InputSize <= 0 || c.YOLO.InputSize <= 0 {
		return errors.New("input sizes must be positive")
	}
	if c.SSD.NumClasses < 2 {
		return errors.Errorf("ssd.numclasses must include background, got %d", c.SSD.NumClasses)
	}
	if c.SSD.NumAnchors <= 0 {
		return errors.Errorf("ssd.numanchors must be positive, got %d", c.SSD.NumAnchors)
	}
	switch c.YOLO.Backend {
	case "cpu", "cuda":
	default:
		return errors.Errorf("yolo.backend must be cpu or cuda, got %q", c.YOLO.Backend)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.Errorf("server.maxbodybytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	return nil
}

// Dump renders the configuration as YAML that Load accepts back.
func Dump(cfg *AppConfig) ([]byte, error) {
	out, err := yamlv3.Marshal(cfg)
	return out, errors.Wrap(err, "marshal config")
}
