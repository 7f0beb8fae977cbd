package detector

import (
	"sort"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Set is a group of loaded detectors addressed by kind.
type Set struct {
	detectors map[Kind]Detector
}

// NewSet groups already loaded detectors. A later detector replaces an earlier one of the same kind.
func NewSet(detectors ...Detector) *Set {
	s := &Set{detectors: make(map[Kind]Detector, len(detectors))}
	for _, d := range detectors {
		s.detectors[d.Kind()] = d
	}
	return s
}

// Open loads every listed kind. If one fails the ones already loaded are closed again.
//
// Arguments:
//   - kinds: The kinds to load, as configured.
//   - cfg: The application configuration.
//
// Returns:
//   - *Set: The loaded detectors.
//   - error: The first load failure, combined with any close failures.
func Open(kinds []string, cfg *config.AppConfig) (*Set, error) {
	s := NewSet()
	for _, name := range kinds {
		kind := Kind(name)
		if _, ok := s.detectors[kind]; ok {
			continue
		}

		d, err := New(kind, cfg)
		if err != nil {
			return nil, multierr.Append(err, s.Close())
		}
		logger.Log().Info("detector loaded", zap.String("kind", name))
		s.detectors[kind] = d
	}
	return s, nil
}

// Get returns the detector of the given kind.
func (s *Set) Get(kind Kind) (Detector, error) {
	d, ok := s.detectors[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%q is not loaded", kind)
	}
	return d, nil
}

// Kinds returns the loaded kinds, sorted.
func (s *Set) Kinds() []Kind {
	kinds := make([]Kind, 0, len(s.detectors))
	for k := range s.detectors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Close closes every detector and returns all of their errors combined.
func (s *Set) Close() error {
	var err error
	for kind, d := range s.detectors {
		if cerr := d.Close(); cerr != nil {
			err = multierr.Append(err, errors.Wrapf(cerr, "close %s", kind))
		}
	}
	s.detectors = map[Kind]Detector{}
	return err
}
