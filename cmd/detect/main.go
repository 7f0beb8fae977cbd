// Command detect runs a detector over image files and prints the detections as JSON lines.
//
// Detection runs in-process by default. With -remote it uploads the files to a detectd instance.
// With -iterations it benchmarks the in-process detector over the decoded files instead.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/nvr-ai/go-detect/benchmark"
	"github.com/nvr-ai/go-detect/client"
	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	_ "github.com/nvr-ai/go-detect/detector/ssd"
	_ "github.com/nvr-ai/go-detect/detector/yolo"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/util"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// result is one output line.
type result struct {
	Path       string             `json:"path"`
	Frame      *int               `json:"frame,omitempty"`
	Detector   string             `json:"detector"`
	Latency    string             `json:"latency"`
	Detections []common.Detection `json:"detections"`
}

// newResult reports the frame number only for files named like "frame-N".
func newResult(f util.ImageFile, kind detector.Kind, latency time.Duration, dets []common.Detection) result {
	r := result{
		Path:       f.Path,
		Detector:   string(kind),
		Latency:    latency.String(),
		Detections: dets,
	}
	if f.Frame != util.NoFrame {
		frame := f.Frame
		r.Frame = &frame
	}
	return r
}

type runner func(ctx context.Context, f util.ImageFile) ([]common.Detection, error)

func main() {
	var (
		configPath   string
		kind         string
		remote       string
		threshold    float64
		nmsThreshold float64
		iterations   int
		warmup       int
	)
	flag.StringVar(&configPath, "config", "", "Path to the YAML config file")
	flag.StringVar(&kind, "detector", string(detector.KindSSD), "Detector to run (ssd or yolo)")
	flag.StringVar(&remote, "remote", "", "Base URL of a detectd instance; empty runs in-process")
	flag.Float64Var(&threshold, "threshold", -1, "Selection threshold override in [0, 1]")
	flag.Float64Var(&nmsThreshold, "nms", -1, "NMS IoU threshold override in [0, 1]")
	flag.IntVar(&iterations, "iterations", 0, "Benchmark the detector for this many iterations")
	flag.IntVar(&warmup, "warmup", 5, "Unmeasured benchmark runs")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <image|dir>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	opts := overrides(threshold, nmsThreshold)
	var err error
	if iterations > 0 {
		scenario := benchmark.NewScenarioBuilder(kind).
			WithDetector(detector.Kind(kind)).
			WithIterations(iterations).
			WithWarmupRuns(warmup).
			WithOptions(opts...).
			Build()
		err = bench(configPath, scenario, flag.Args())
	} else {
		err = run(configPath, detector.Kind(kind), remote, opts, flag.Args())
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "detect:", err)
		os.Exit(1)
	}
}

func overrides(threshold, nmsThreshold float64) []detector.Option {
	var opts []detector.Option
	if threshold >= 0 {
		opts = append(opts, detector.WithSelectThreshold(float32(threshold)))
	}
	if nmsThreshold >= 0 {
		opts = append(opts, detector.WithNMSThreshold(float32(nmsThreshold)))
	}
	return opts
}

func setup(configPath string) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if configPath == "" {
		cfg, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return nil, err
	}
	return cfg, logger.Init(cfg.Log)
}

func bench(configPath string, scenario benchmark.Scenario, paths []string) (err error) {
	cfg, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	files, err := util.LoadImageFiles(paths...)
	if err != nil {
		return err
	}
	imgs := make([]image.Image, 0, len(files))
	for _, f := range files {
		img, _, err := images.Decode(f.Data)
		if err != nil {
			return errors.Wrap(err, f.Path)
		}
		imgs = append(imgs, img)
	}

	d, err := detector.New(scenario.Detector, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, d.Close())
	}()

	m, err := benchmark.Run(context.Background(), d, imgs, scenario)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(m), "write benchmark")
}

func run(configPath string, kind detector.Kind, remote string, opts []detector.Option, paths []string) (err error) {
	cfg, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	files, err := util.LoadImageFiles(paths...)
	if err != nil {
		return err
	}

	var detect runner
	if remote != "" {
		cc := cfg.Client
		cc.BaseURL = remote
		c := client.New(cc)
		detect = func(ctx context.Context, f util.ImageFile) ([]common.Detection, error) {
			resp, err := c.Detect(ctx, kind, f.Data, opts...)
			if err != nil {
				return nil, err
			}
			return resp.Detections, nil
		}
	} else {
		var d detector.Detector
		if d, err = detector.New(kind, cfg); err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, d.Close())
		}()
		detect = func(ctx context.Context, f util.ImageFile) ([]common.Detection, error) {
			img, _, err := images.Decode(f.Data)
			if err != nil {
				return nil, err
			}
			return d.Detect(ctx, img, opts...)
		}
	}

	ctx := context.Background()
	enc := json.NewEncoder(os.Stdout)
	for _, f := range files {
		start := time.Now()
		dets, err := detect(ctx, f)
		if err != nil {
			return errors.Wrap(err, f.Path)
		}
		logger.Log().Debug("detected", zap.String("path", f.Path), zap.Int("count", len(dets)))

		if err := enc.Encode(newResult(f, kind, time.Since(start), dets)); err != nil {
			return errors.Wrap(err, "write result")
		}
	}
	return nil
}
