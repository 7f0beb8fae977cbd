package yolo

import (
	"image"
	"os"

	"github.com/nvr-ai/go-detect/config"
	yolodecode "github.com/nvr-ai/go-detect/models/yolo"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"
)

// forwarder runs the network over one image and returns its raw output layers.
type forwarder interface {
	Forward(img image.Image) ([]yolodecode.Layer, error)
	Close() error
}

// gocvForwarder serves a darknet cfg + weights pair through OpenCV DNN.
type gocvForwarder struct {
	net      gocv.Net
	outNames []string
	size     image.Point
}

func newGocvForwarder(cfg config.YOLOConfig) (*gocvForwarder, error) {
	for _, p := range []string{cfg.ConfigPath, cfg.WeightsPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, errors.Wrap(err, "model file")
		}
	}

	net := gocv.ReadNetFromDarknet(cfg.ConfigPath, cfg.WeightsPath)
	if net.Empty() {
		return nil, errors.Errorf("failed to read darknet model %s", cfg.WeightsPath)
	}

	backend, target := gocv.NetBackendDefault, gocv.NetTargetCPU
	if cfg.Backend == "cuda" {
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}
	if err := multierr.Combine(net.SetPreferableBackend(backend), net.SetPreferableTarget(target)); err != nil {
		_ = net.Close()
		return nil, errors.Wrap(err, "select dnn backend")
	}

	var outNames []string
	for _, id := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(id)
		outNames = append(outNames, layer.GetName())
		_ = layer.Close()
	}
	if len(outNames) == 0 {
		_ = net.Close()
		return nil, errors.New("darknet model has no output layers")
	}

	return &gocvForwarder{
		net:      net,
		outNames: outNames,
		size:     image.Pt(cfg.InputSize, cfg.InputSize),
	}, nil
}

func (f *gocvForwarder) Forward(img image.Image) ([]yolodecode.Layer, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "convert image")
	}
	defer mat.Close()

	// ImageToMatRGB yields BGR, darknet expects RGB scaled to [0, 1].
	blob := gocv.BlobFromImage(mat, 1.0/255.0, f.size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	f.net.SetInput(blob, "")
	outs := f.net.ForwardLayers(f.outNames)
	defer func() {
		for i := range outs {
			_ = outs[i].Close()
		}
	}()

	layers := make([]yolodecode.Layer, 0, len(outs))
	for i, out := range outs {
		data, err := out.DataPtrFloat32()
		if err != nil {
			return nil, errors.Wrapf(err, "read layer %s", f.outNames[i])
		}
		// The Mat memory is released on return.
		layers = append(layers, yolodecode.Layer{
			Data: append([]float32(nil), data...),
			Cols: out.Cols(),
		})
	}
	return layers, nil
}

func (f *gocvForwarder) Close() error {
	return f.net.Close()
}
