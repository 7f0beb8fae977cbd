// Command detectd serves the configured detectors over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	_ "github.com/nvr-ai/go-detect/detector/ssd"
	_ "github.com/nvr-ai/go-detect/detector/yolo"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/metrics"
	"github.com/nvr-ai/go-detect/server"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath string
		dump       bool
	)
	flag.StringVar(&configPath, "config", "", "Path to the YAML config file (defaults to "+config.DefaultPath+" when present)")
	flag.BoolVar(&dump, "dump-config", false, "Print the effective configuration and exit")
	flag.Parse()

	if err := run(configPath, dump); err != nil {
		fmt.Fprintln(os.Stderr, "detectd:", err)
		os.Exit(1)
	}
}

func run(configPath string, dump bool) (err error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if dump {
		out, err := config.Dump(cfg)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	}

	if err := logger.Init(cfg.Log); err != nil {
		return err
	}
	defer logger.Sync()

	logger.Log().Info("loading detectors",
		zap.Strings("detectors", cfg.Server.Detectors),
		zap.Any("registered", detector.Kinds()))

	set, err := detector.Open(cfg.Server.Detectors, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, set.Close())
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg.Server, set, metrics.New()).Run(ctx)
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		return config.LoadDefault()
	}
	return config.Load(path)
}
