package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSettingsFromDegree(t *testing.T) {
	tests := []struct {
		degree int
		want   Settings
	}{
		{degree: 0, want: Settings{Temperature: 0, TopP: 0.5, MaxTokens: 1000}},
		{degree: 50, want: Settings{Temperature: 0.75, TopP: 0.75, MaxTokens: 2000}},
		{degree: 100, want: Settings{Temperature: 1.5, TopP: 1.0, MaxTokens: 3000}},
		{degree: -10, want: Settings{Temperature: 0, TopP: 0.5, MaxTokens: 1000}},
		{degree: 250, want: Settings{Temperature: 1.5, TopP: 1.0, MaxTokens: 3000}},
	}
	for _, tt := range tests {
		got := SettingsFromDegree(tt.degree)
		require.InDelta(t, tt.want.Temperature, got.Temperature, 1e-9, "degree %d", tt.degree)
		require.InDelta(t, tt.want.TopP, got.TopP, 1e-9, "degree %d", tt.degree)
		require.Equal(t, tt.want.MaxTokens, got.MaxTokens, "degree %d", tt.degree)
	}
}

func TestSettingsApplyEmptyOverridesKeepDefaults(t *testing.T) {
	got := DefaultSettings().Apply(Overrides{})
	require.Equal(t, DefaultSettings(), got)
}

func TestSettingsApplyZeroValueWins(t *testing.T) {
	zero := 0.0
	got := DefaultSettings().Apply(Overrides{Temperature: &zero, TopP: &zero})
	require.Equal(t, 0.0, got.Temperature)
	require.Equal(t, 0.0, got.TopP)
	require.Equal(t, DefaultSettings().MaxTokens, got.MaxTokens)
}

func TestPresetsMatchDegreeOrdering(t *testing.T) {
	presets := Presets()
	require.Len(t, presets, 3)
	require.Equal(t, "conservative", presets[0].Name)
	require.Equal(t, "balanced", presets[1].Name)
	require.Equal(t, "creative", presets[2].Name)
	for i := 1; i < len(presets); i++ {
		require.Greater(t, presets[i].Degree, presets[i-1].Degree)
		require.GreaterOrEqual(t, presets[i].Settings.Temperature, presets[i-1].Settings.Temperature)
	}
}
