package config

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			Extensions: []string{".h"},
		},
		Plan: PlanConfig{
			Overwrite: "no",
		},
		Report: ReportConfig{
			Path:             "hq-report.md",
			MaxErrorSnippets: 15,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
	}
}

// Merge overlays loaded onto defaults. Zero values in loaded keep the
// default; cache.enabled is the exception and always comes from the
// file when the scan section parsed at all.
func Merge(loaded, defaults *Config) *Config {
	merged := *defaults

	if len(loaded.Scan.Extensions) > 0 {
		merged.Scan.Extensions = loaded.Scan.Extensions
	}
	if len(loaded.Scan.Exclude) > 0 {
		merged.Scan.Exclude = loaded.Scan.Exclude
	}
	if loaded.Plan.Overwrite != "" {
		merged.Plan.Overwrite = loaded.Plan.Overwrite
	}
	if loaded.Report.Path != "" {
		merged.Report.Path = loaded.Report.Path
	}
	if loaded.Report.MaxErrorSnippets != 0 {
		merged.Report.MaxErrorSnippets = loaded.Report.MaxErrorSnippets
	}
	if loaded.Cache.set {
		merged.Cache.Enabled = loaded.Cache.Enabled
	}

	return &merged
}

// UnmarshalYAML marks the cache section as explicitly present, so an
// explicit `enabled: false` survives the merge with defaults.
func (c *CacheConfig) UnmarshalYAML(unmarshal func(any) error) error {
	type plain struct {
		Enabled bool `yaml:"enabled"`
	}
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	c.Enabled = p.Enabled
	c.set = true
	return nil
}
