// Package server exposes loaded detectors over HTTP.
package server

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nvr-ai/go-detect/api"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Server routes detection requests to a set of loaded detectors.
type Server struct {
	cfg     config.ServerConfig
	set     *detector.Set
	metrics *metrics.Metrics
	engine  *gin.Engine
}

// New builds the router. Detectors are instrumented with m before they are served.
//
// Arguments:
//   - cfg: Listener and request limits.
//   - set: The loaded detectors.
//   - m: The metrics registry served on /metrics.
//
// Returns:
//   - *Server: The server, not yet listening.
func New(cfg config.ServerConfig, set *detector.Set, m *metrics.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:     cfg,
		set:     m.InstrumentSet(set),
		metrics: m,
		engine:  gin.New(),
	}

	s.engine.Use(gin.Recovery(), requestID(), accessLog())
	s.engine.GET(api.PathHealth, s.health)
	s.engine.GET(api.PathMetrics, gin.WrapH(m.Handler()))
	s.engine.GET(api.PathDetectors, s.detectors)
	s.engine.POST(api.PathDetect+":detector", s.detect)
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests for up to
// ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log().Info("listening", zap.String("address", s.cfg.Address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	logger.Log().Info("shutting down", zap.Duration("timeout", s.cfg.ShutdownTimeout))
	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown")
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) detectors(c *gin.Context) {
	kinds := s.set.Kinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	c.JSON(http.StatusOK, api.DetectorsResponse{Detectors: names})
}

func (s *Server) detect(c *gin.Context) {
	d, err := s.set.Get(detector.Kind(c.Param("detector")))
	if err != nil {
		s.fail(c, http.StatusNotFound, err)
		return
	}

	opts, err := parseOptions(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	body, err := s.readImage(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, http.StatusRequestEntityTooLarge, err)
			return
		}
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	img, format, err := images.Decode(body)
	switch {
	case errors.Is(err, images.ErrUnsupportedFormat):
		s.fail(c, http.StatusUnsupportedMediaType, err)
		return
	case err != nil:
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	dets, err := d.Detect(c.Request.Context(), img, opts...)
	switch {
	case errors.Is(err, detector.ErrClosed):
		s.fail(c, http.StatusServiceUnavailable, err)
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.fail(c, http.StatusRequestTimeout, err)
		return
	case err != nil:
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, api.DetectResponse{
		RequestID:  c.GetString(requestIDKey),
		Detector:   string(d.Kind()),
		Format:     string(format),
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		Detections: dets,
	})
}

// readImage accepts either a raw image body or a multipart form with an "image" file.
func (s *Server) readImage(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		fh, err := c.FormFile("image")
		if err != nil {
			return nil, errors.Wrap(err, "multipart image field")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, errors.Wrap(err, "open upload")
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	body, err := io.ReadAll(c.Request.Body)
	return body, errors.Wrap(err, "read body")
}

func parseOptions(c *gin.Context) ([]detector.Option, error) {
	var opts []detector.Option
	for _, q := range []struct {
		key  string
		with func(float32) detector.Option
	}{
		{api.QueryThreshold, detector.WithSelectThreshold},
		{api.QueryNMSThreshold, detector.WithNMSThreshold},
	} {
		raw, ok := c.GetQuery(q.key)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil || v < 0 || v > 1 {
			return nil, errors.Errorf("%s must be a number in [0, 1], got %q", q.key, raw)
		}
		opts = append(opts, q.with(float32(v)))
	}
	return opts, nil
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, api.ErrorResponse{
		RequestID: c.GetString(requestIDKey),
		Error:     err.Error(),
	})
}
