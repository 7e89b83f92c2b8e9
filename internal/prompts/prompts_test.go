package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_EmbeddedTemplates(t *testing.T) {
	t.Parallel()

	s := Default()
	for _, name := range []string{MilestonePlanner, TechStackAdvisor, RiskAnalyzer, CostEstimator, RequirementExtractor} {
		out, err := s.Render(name, Data{MinPhases: 4, MaxPhases: 6, MinDeliverables: 3, MaxDeliverables: 5, MinRisks: 5, MaxRisks: 8})
		require.NoError(t, err, name)
		assert.Contains(t, out, "JSON only", name)
		assert.NotContains(t, out, "Revision feedback", name)
	}
}

func TestRender_IncludesFeedbackAndBounds(t *testing.T) {
	t.Parallel()

	out, err := Default().Render(MilestonePlanner, Data{
		MinPhases: 4, MaxPhases: 6, MinDeliverables: 3, MaxDeliverables: 5,
		Feedback: []string{"Reduce scope to fit $15,000"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Create 4-6 phases")
	assert.Contains(t, out, "- Reduce scope to fit $15,000")
}

func TestLoad_OverrideReplacesEmbeddedTemplate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "risk_analyzer.gotmpl"),
		[]byte("Custom risk prompt with {{.MinRisks}} risks."), 0o644))

	s, err := Load(dir)
	require.NoError(t, err)

	out, err := s.Render(RiskAnalyzer, Data{MinRisks: 5})
	require.NoError(t, err)
	assert.Equal(t, "Custom risk prompt with 5 risks.", out)

	out, err = s.Render(TechStackAdvisor, Data{})
	require.NoError(t, err)
	assert.Contains(t, out, "software architecture expert")
}

func TestRender_UnknownTemplate(t *testing.T) {
	t.Parallel()

	_, err := Default().Render("nope", Data{})
	require.Error(t, err)
}
