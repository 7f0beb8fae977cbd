// Package inference - ONNX Runtime sessions with preallocated tensors.
package inference

import (
	"os"

	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
)

// Session represents a model session from the onnxruntime.
//
// The session owns its input and output tensors: Run reads whatever the caller wrote into the
// inputs and overwrites the outputs in place.
type Session struct {
	session *ort.AdvancedSession
	Inputs  []ort.Value
	Outputs []ort.Value
}

// NewSessionArgs represents the arguments for creating a new session.
type NewSessionArgs struct {
	// The path to the ONNX model file.
	ModelPath string
	// Input node names expected by the model, in the same order as Inputs.
	InputNames []string
	// Output node names expected by the model, in the same order as Outputs.
	OutputNames []string
	// Preallocated input tensors.
	Inputs []ort.Value
	// Preallocated output tensors.
	Outputs []ort.Value
	// Execution provider selection and limits.
	Provider providers.Config
}

// NewSession creates a new ONNX Runtime session bound to preallocated tensors.
//
// Order of operations:
//  1. Model check: the file must exist before the native layer is touched.
//  2. Environment setup: loads the shared library once per process.
//  3. Session options: threading, graph optimization and execution provider.
//  4. Session creation: loads the model and binds the tensors.
//
// The session takes ownership of args.Inputs and args.Outputs. They are destroyed on failure and
// by Close on success.
//
// Arguments:
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: The runnable session.
//   - error: An error if any step fails.
func NewSession(args NewSessionArgs) (*Session, error) {
	s, err := newSession(args)
	if err != nil {
		_ = destroyAll(args.Inputs, args.Outputs)
		return nil, err
	}
	return s, nil
}

func newSession(args NewSessionArgs) (*Session, error) {
	if len(args.InputNames) != len(args.Inputs) || len(args.OutputNames) != len(args.Outputs) {
		return nil, errors.Errorf("tensor names and tensors differ: %d/%d inputs, %d/%d outputs",
			len(args.InputNames), len(args.Inputs), len(args.OutputNames), len(args.Outputs))
	}
	if _, err := os.Stat(args.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model file %s", args.ModelPath)
	}

	if err := providers.InitializeEnvironment(providers.GetSharedLibPath(args.Provider.LibraryPath)); err != nil {
		return nil, err
	}

	options, err := providers.NewSessionOptions(args.Provider)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		args.InputNames,
		args.OutputNames,
		args.Inputs,
		args.Outputs,
		options,
	)
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	return &Session{
		session: session,
		Inputs:  args.Inputs,
		Outputs: args.Outputs,
	}, nil
}

// Run executes the model once over the current input tensors.
func (s *Session) Run() error {
	if s.session == nil {
		return errors.New("session is closed")
	}
	return errors.Wrap(s.session.Run(), "error running ORT session")
}

// Close releases the native session and its tensors. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	if s.session != nil {
		err = multierr.Append(err, errors.Wrap(s.session.Destroy(), "error destroying ORT session"))
		s.session = nil
	}
	err = multierr.Append(err, destroyAll(s.Inputs, s.Outputs))
	s.Inputs, s.Outputs = nil, nil
	return err
}

func destroyAll(groups ...[]ort.Value) error {
	var err error
	for _, group := range groups {
		for _, v := range group {
			if v != nil {
				err = multierr.Append(err, v.Destroy())
			}
		}
	}
	return err
}
