package solc

import (
	"encoding/json"
	"testing"

	"github.com/ethereal-ir/evmla/core/codegen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizerSettings(t *testing.T) {
	settings, err := NewOptimizer(true, 0).Settings()
	require.NoError(t, err)
	assert.Equal(t, codegen.CyclesOptimizerSettings(), settings)

	settings, err = NewOptimizer(true, 'z').Settings()
	require.NoError(t, err)
	assert.Equal(t, byte('z'), settings.Mode())

	_, err = NewOptimizer(true, 'x').Settings()
	assert.Error(t, err)
}

func TestOptimizerJSON(t *testing.T) {
	var o Optimizer
	require.NoError(t, json.Unmarshal([]byte(`{"enabled": true, "details": {"peephole": false, "inliner": true}}`), &o))
	assert.True(t, o.Enabled)
	require.NotNil(t, o.Details)
	assert.True(t, o.Details.Inliner)

	o.Mode = '1'
	o.Normalize()
	assert.Equal(t, DefaultDetails(), *o.Details)

	out, err := json.Marshal(&o)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "mode")
	assert.Contains(t, string(out), `"jumpdestRemover":true`)
}
