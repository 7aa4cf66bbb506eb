package model

// AssistProfile is a static configuration entry mapping rider effort to motor
// assist output. Profiles are read-only; only the active index changes at
// runtime.
type AssistProfile struct {
	Name       string  `yaml:"name" json:"name"`
	Factor     float64 `yaml:"factor" json:"factor"`           // assist power = human power * factor
	MaxCurrent float64 `yaml:"max_current" json:"max_current"` // amps, hard cap on the command
	HasLight   bool    `yaml:"has_light" json:"has_light"`
}

// DefaultProfiles returns the built-in profile table. Index 0 is the
// no-assist profile used by the emergency-stop transition.
func DefaultProfiles() []AssistProfile {
	return []AssistProfile{
		{Name: "No Assist", Factor: 0.0, MaxCurrent: 0.0, HasLight: false},
		{Name: "Eco", Factor: 0.5, MaxCurrent: 6.0, HasLight: false},
		{Name: "Tour", Factor: 1.0, MaxCurrent: 10.0, HasLight: true},
		{Name: "Sport", Factor: 1.7, MaxCurrent: 15.0, HasLight: true},
		{Name: "Turbo", Factor: 2.5, MaxCurrent: 20.0, HasLight: true},
	}
}
