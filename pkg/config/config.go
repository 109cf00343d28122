package config

import (
	"fmt"
	"strings"

	"github.com/xplshn/sgen/pkg/cli"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatFold Feature = iota
	FeatInferConst
	FeatFrameComments
	FeatCount
)

type Warning int

const (
	WarnUnreachableCode Warning = iota
	WarnInfiniteLoop
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features      map[Feature]Info
	Warnings      map[Warning]Info
	FeatureMap    map[string]Feature
	WarningMap    map[string]Warning
	BackendName   string
	BackendTarget string
	GOOS          string
	GOARCH        string
	PtrType       string

	allWarnings, noWarnings bool
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
	}

	features := map[Feature]Info{
		FeatFold:          {"fold", true, "Replace expressions with a known constant annotation by an immediate and drop dead branches."},
		FeatInferConst:    {"infer-const", true, "Annotate unresolved expressions built only from literals as constants."},
		FeatFrameComments: {"frame-comments", false, "Annotate frame slots with variable names in i386 output."},
	}

	warnings := map[Warning]Info{
		WarnUnreachableCode: {"unreachable-code", true, "Warn when a branch is removed because its guard is constant."},
		WarnInfiniteLoop:    {"infinite-loop", true, "Warn when a loop guard is known to be always true."},
		WarnExtra:           {"extra", false, "Warn about statements that follow a return in the same block."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	cfg.BackendName, cfg.BackendTarget = "i386", "i386"
	cfg.PtrType = "w"
	return cfg
}

// SetTarget configures the backend from a "<backend>[:<target>]" string.
// An empty QBE target defaults to the host.
func (c *Config) SetTarget(goos, goarch, target string) error {
	c.GOOS, c.GOARCH = goos, goarch

	backend, qbeTarget, _ := strings.Cut(target, ":")
	switch backend {
	case "", "i386":
		c.BackendName, c.BackendTarget = "i386", "i386"
		c.PtrType = "w"
		return nil
	case "qbe":
		c.BackendName = "qbe"
	default:
		return fmt.Errorf("unsupported backend '%s'. Supported: 'i386', 'qbe'", backend)
	}

	if qbeTarget == "" {
		qbeTarget = libqbe.DefaultTarget(goos, goarch)
	}
	c.BackendTarget = qbeTarget

	// Values stay 32-bit words; only addresses follow the target.
	switch qbeTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.PtrType = "l"
	default:
		return fmt.Errorf("unsupported QBE target '%s'", qbeTarget)
	}
	return nil
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

func (c *Config) applyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")

	var name string
	var isWarning bool
	switch {
	case strings.HasPrefix(trimmed, "W"):
		name, isWarning = strings.TrimPrefix(trimmed, "W"), true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
	default:
		return fmt.Errorf("unrecognized flag '%s'", flag)
	}
	enable := !strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return nil
	}

	if isWarning {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
		return nil
	}
	f, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(f, enable)
	return nil
}

// ProcessFlagString applies a whitespace separated list of -W/-F flags.
func (c *Config) ProcessFlagString(flagStr string) error {
	for _, flag := range strings.Fields(flagStr) {
		if err := c.applyFlag(flag); err != nil {
			return err
		}
	}
	return nil
}

// SetupFlagGroups registers -W<name>/-Wno-<name> and -F<name>/-Fno-<name>
// on fs, plus -Wall and -Wno-all. The returned entries are indexed by
// Warning and Feature.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	fs.Bool(&c.allWarnings, "Wall", "", false, "Enable all warnings.")
	fs.Bool(&c.noWarnings, "Wno-all", "", false, "Disable all warnings.")

	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warningFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description,
			Enabled: new(bool), Disabled: new(bool), Default: info.Enabled,
		}
	}

	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		featureFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description,
			Enabled: new(bool), Disabled: new(bool), Default: info.Enabled,
		}
	}

	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable code generation features", "feature", "Available Features:", featureFlags)
	return warningFlags, featureFlags
}

// ApplyFlagGroups copies parsed flag group values into the configuration.
// -Wall and -Wno-all apply first, so single warnings override them wherever
// they appear on the command line.
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry) {
	if c.allWarnings {
		c.applyFlag("-Wall")
	}
	if c.noWarnings {
		c.applyFlag("-Wno-all")
	}
	for i, entry := range warningFlags {
		if *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}
