package ssd

import (
	"os"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// runner is the part of the backend a Detector drives: fill Input, Run, read the outputs.
type runner interface {
	Input() []uint8
	Run() error
	Outputs() (scores, boxes []float32)
	Close() error
}

// ortRunner binds an SSD-300 ONNX export: a uint8 NHWC image in, per-anchor class scores
// [1, anchors, classes] and decoded boxes [1, anchors, 4] out.
type ortRunner struct {
	session *inference.Session
	input   *ort.Tensor[uint8]
	scores  *ort.Tensor[float32]
	boxes   *ort.Tensor[float32]
}

func newORTRunner(cfg config.SSDConfig, runtime providers.Config) (*ortRunner, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrap(err, "model file")
	}
	// Tensors can only be allocated once the shared library is loaded.
	if err := providers.InitializeEnvironment(providers.GetSharedLibPath(runtime.LibraryPath)); err != nil {
		return nil, err
	}

	size := int64(cfg.InputSize)
	anchors := int64(cfg.NumAnchors)

	input, err := ort.NewEmptyTensor[uint8](ort.NewShape(1, size, size, images.Channels))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	scores, err := ort.NewEmptyTensor[float32](ort.NewShape(1, anchors, int64(cfg.NumClasses)))
	if err != nil {
		_ = input.Destroy()
		return nil, errors.Wrap(err, "error creating scores tensor")
	}
	boxes, err := ort.NewEmptyTensor[float32](ort.NewShape(1, anchors, 4))
	if err != nil {
		_ = input.Destroy()
		_ = scores.Destroy()
		return nil, errors.Wrap(err, "error creating boxes tensor")
	}

	session, err := inference.NewSession(inference.NewSessionArgs{
		ModelPath:   cfg.ModelPath,
		InputNames:  []string{cfg.InputName},
		OutputNames: []string{cfg.ScoresName, cfg.BoxesName},
		Inputs:      []ort.Value{input},
		Outputs:     []ort.Value{scores, boxes},
		Provider:    runtime,
	})
	if err != nil {
		return nil, err
	}

	return &ortRunner{session: session, input: input, scores: scores, boxes: boxes}, nil
}

func (r *ortRunner) Input() []uint8 {
	return r.input.GetData()
}

func (r *ortRunner) Run() error {
	return r.session.Run()
}

func (r *ortRunner) Outputs() (scores, boxes []float32) {
	return r.scores.GetData(), r.boxes.GetData()
}

// Close destroys the session, which owns the tensors.
func (r *ortRunner) Close() error {
	return r.session.Close()
}
