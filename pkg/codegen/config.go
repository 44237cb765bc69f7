package codegen

// Config holds the tunables of an Engine.
type Config struct {
	// Workers bounds how many template files GenerateAll renders at once.
	// Variable sets of one file are always rendered in order.
	Workers int `json:"workers"`

	// SkipUnchanged leaves an existing output untouched when the tracker
	// reports identical content from a previous run.
	SkipUnchanged bool `json:"skip_unchanged"`
}

// DefaultConfig returns a Config with conservative defaults.
func DefaultConfig() Config {
	return Config{
		Workers:       1,
		SkipUnchanged: true,
	}
}
