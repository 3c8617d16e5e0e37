package targets

// Checks selects the optional checks of a target. Reachability always runs.
type Checks struct {
	Spelling    bool `yaml:"spelling"`
	Performance bool `yaml:"performance"`
	Links       bool `yaml:"links"`
	Recursive   bool `yaml:"recursive"`
}

// Spelling tunes the spelling check.
type Spelling struct {
	ExtraWords  []string `yaml:"extra_words"`
	IgnoreWords []string `yaml:"ignore_words"`
}

// Entry is one monitored website in the targets file.
type Entry struct {
	URL      string   `yaml:"url"`
	Owner    string   `yaml:"owner"`
	Group    string   `yaml:"group"`
	Checks   Checks   `yaml:"checks"`
	Spelling Spelling `yaml:"spelling"`
	Disabled bool     `yaml:"disabled"`
}

// Config is the root of the targets file: a plain list of entries.
type Config []Entry
