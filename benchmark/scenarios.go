package benchmark

import "github.com/nvr-ai/go-detect/detector"

// ScenarioBuilder helps build scenarios fluently.
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a builder with 100 iterations and 5 warmup runs.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Iterations: 100,
			WarmupRuns: 5,
		},
	}
}

// WithDetector sets the detector kind the scenario is reported under.
func (sb *ScenarioBuilder) WithDetector(kind detector.Kind) *ScenarioBuilder {
	sb.scenario.Detector = kind
	return sb
}

// WithIterations sets the number of measured iterations.
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of unmeasured runs before the first iteration.
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// WithOptions sets the options passed to every Detect call.
func (sb *ScenarioBuilder) WithOptions(opts ...detector.Option) *ScenarioBuilder {
	sb.scenario.Options = opts
	return sb
}

// Build returns the scenario.
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}
