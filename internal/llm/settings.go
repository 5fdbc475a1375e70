package llm

// Settings are the generation parameters sent with every provider request.
// The zero value is not useful; start from DefaultSettings and apply
// overrides.
type Settings struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p"`
	MaxTokens        int     `json:"max_tokens"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty"`
}

// DefaultSettings returns the stored generation defaults used when the
// caller supplies no override.
func DefaultSettings() Settings {
	return Settings{
		Temperature: 0.7,
		TopP:        1.0,
		MaxTokens:   2000,
	}
}

// Overrides carries caller-supplied parameter overrides. Nil fields keep
// the stored default; set fields win.
type Overrides struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

// Apply merges o over s and returns the result. Caller values win.
func (s Settings) Apply(o Overrides) Settings {
	if o.Temperature != nil {
		s.Temperature = *o.Temperature
	}
	if o.TopP != nil {
		s.TopP = *o.TopP
	}
	if o.MaxTokens != nil {
		s.MaxTokens = *o.MaxTokens
	}
	if o.FrequencyPenalty != nil {
		s.FrequencyPenalty = *o.FrequencyPenalty
	}
	if o.PresencePenalty != nil {
		s.PresencePenalty = *o.PresencePenalty
	}
	return s
}

// SettingsFromDegree maps a "thinking degree" scalar (0 = conservative,
// 50 = balanced, 100 = creative) onto generation parameters:
//
//	temperature = degree/100 × 1.5
//	top_p       = 0.5 + degree/100 × 0.5
//	max_tokens  = 1000 + degree/100 × 2000
//
// The degree is clamped to [0, 100]. This mapping is a front-end
// convenience; callers may also set parameters directly.
func SettingsFromDegree(degree int) Settings {
	if degree < 0 {
		degree = 0
	}
	if degree > 100 {
		degree = 100
	}
	d := float64(degree)
	return Settings{
		Temperature: d / 100 * 1.5,
		TopP:        0.5 + d/100*0.5,
		MaxTokens:   1000 + int(d/100*2000),
	}
}

// Preset is a named generation profile exposed to front-ends.
type Preset struct {
	Name     string   `json:"name"`
	Degree   int      `json:"degree"`
	Settings Settings `json:"settings"`
}

// Presets returns the built-in generation profiles.
func Presets() []Preset {
	return []Preset{
		{Name: "conservative", Degree: 20, Settings: Settings{Temperature: 0.3, TopP: 0.8, MaxTokens: 1500}},
		{Name: "balanced", Degree: 50, Settings: Settings{Temperature: 0.7, TopP: 1.0, MaxTokens: 2000}},
		{Name: "creative", Degree: 80, Settings: Settings{Temperature: 1.2, TopP: 1.0, MaxTokens: 3000}},
	}
}
