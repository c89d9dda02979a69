// Package solc holds the parts of the `solc --standard-json` input that the
// compiler consumes.
package solc

import (
	"github.com/ethereal-ir/evmla/core/codegen"
)

// Details are the solc optimizer step switches forwarded in the standard JSON
// input.
type Details struct {
	Peephole          bool `json:"peephole"`
	Inliner           bool `json:"inliner"`
	JumpdestRemover   bool `json:"jumpdestRemover"`
	OrderLiterals     bool `json:"orderLiterals"`
	Deduplicate       bool `json:"deduplicate"`
	CSE               bool `json:"cse"`
	ConstantOptimizer bool `json:"constantOptimizer"`
}

// DefaultDetails enables the steps that keep the legacy assembly layout
// stable: tags must survive, so the inliner and the deduplicator stay off.
func DefaultDetails() Details {
	return Details{
		Peephole:          true,
		JumpdestRemover:   true,
		OrderLiterals:     true,
		CSE:               true,
		ConstantOptimizer: true,
	}
}

// Optimizer is the `settings.optimizer` object of the standard JSON input.
// Mode is the backend mode character and never leaves the compiler.
type Optimizer struct {
	Enabled bool     `json:"enabled"`
	Mode    byte     `json:"-"`
	Details *Details `json:"details,omitempty"`
}

// NewOptimizer creates the settings with the default details. A zero mode
// means none was requested.
func NewOptimizer(enabled bool, mode byte) *Optimizer {
	details := DefaultDetails()
	return &Optimizer{Enabled: enabled, Mode: mode, Details: &details}
}

// Normalize resets the details to the defaults, whatever the caller asked for.
func (o *Optimizer) Normalize() {
	details := DefaultDetails()
	o.Details = &details
}

// Settings converts to backend settings: the explicit mode if one was set,
// the cycles-optimising level otherwise.
func (o *Optimizer) Settings() (codegen.OptimizerSettings, error) {
	if o.Mode != 0 {
		return codegen.OptimizerSettingsFromCLI(o.Mode)
	}
	return codegen.CyclesOptimizerSettings(), nil
}
