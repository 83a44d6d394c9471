package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate_Embedded(t *testing.T) {
	out, err := run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "depression: 9 questions, max score 27")
	assert.Contains(t, out, "All 3 instruments are valid")
}

func TestValidate_BrokenDir(t *testing.T) {
	dir := t.TempDir()
	broken := `id: broken
title: Broken
scale:
  - {value: 0, label: No}
  - {value: 1, label: Yes}
questions:
  - prompt: One
  - prompt: Two
bands:
  - {key: low, label: Low, lower: 0, upper: 1}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(broken), 0o644))

	out, err := run(t, "validate", dir)
	require.Error(t, err)
	assert.Contains(t, out, "Validation failed")
	assert.Contains(t, out, "bands end at 1, max score is 2")
}

func TestList(t *testing.T) {
	out, err := run(t, "list", "-v")
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, out, "perinatal")
	assert.Contains(t, out, "functional_impact [single_select] (required)")
	assert.Contains(t, out, "20-27  Severe")
}

func TestSimulate(t *testing.T) {
	out, err := run(t, "simulate", "depression",
		"--answers", "1,1,2,0,0,1,0,0,0",
		"--ancillary", "functional_impact=somewhat")
	require.NoError(t, err)
	assert.Contains(t, out, "Score:    5 / 27")
	assert.Contains(t, out, "Severity: Mild")
	assert.Contains(t, out, "Crisis:   no")
}

func TestSimulate_Crisis(t *testing.T) {
	out, err := run(t, "simulate", "perinatal",
		"--answers", "0,0,0,0,0,0,0,0,0,0",
		"--ancillary", "stage=postpartum_0_3",
		"--ancillary", "emergency_signs=no_sleep_72h,confused_or_paranoid",
		"--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"crisis_flag": true`)
	assert.Contains(t, out, `"emergency": true`)
}

func TestSimulate_Errors(t *testing.T) {
	_, err := run(t, "simulate", "depression", "--answers", "1,1")
	assert.ErrorContains(t, err, "has 9 questions, got 2 answers")

	_, err = run(t, "simulate", "depression", "--answers", "0,0,0,0,0,0,0,0,0")
	assert.ErrorContains(t, err, "functional_impact")

	_, err = run(t, "simulate", "depression", "--answers", "0,0,0,0,0,0,0,0,0", "--ancillary", "functional_impact")
	assert.ErrorContains(t, err, "expected field=value")

	_, err = run(t, "simulate", "nope", "--answers", "0")
	assert.Error(t, err)
}
