package detector

import "image"

// Options holds per-call overrides. Nil thresholds keep the detector's configured values.
type Options struct {
	SelectThreshold *float32
	NMSThreshold    *float32
	// NetShape is accepted for call compatibility. Input shapes are fixed when a detector loads.
	NetShape image.Point
}

// Option sets a field of Options.
type Option func(*Options)

// WithSelectThreshold overrides the minimum score a detection needs.
func WithSelectThreshold(v float32) Option {
	return func(o *Options) { o.SelectThreshold = &v }
}

// WithNMSThreshold overrides the IoU at or above which overlapping boxes are suppressed.
func WithNMSThreshold(v float32) Option {
	return func(o *Options) { o.NMSThreshold = &v }
}

// WithNetShape records the requested network input shape. Detectors ignore it.
func WithNetShape(p image.Point) Option {
	return func(o *Options) { o.NetShape = p }
}

// Apply folds opts into an Options value.
func Apply(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Select returns the override or fallback.
func (o Options) Select(fallback float32) float32 {
	if o.SelectThreshold != nil {
		return *o.SelectThreshold
	}
	return fallback
}

// NMS returns the override or fallback.
func (o Options) NMS(fallback float32) float32 {
	if o.NMSThreshold != nil {
		return *o.NMSThreshold
	}
	return fallback
}
