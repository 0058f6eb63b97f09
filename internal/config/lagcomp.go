package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical compensation defaults file.
const DefaultConfigPath = "config/lagcomp.defaults.json"

// Integrator and normalisation names accepted in the configuration. They
// mirror the names registered by the integ and lagcomp packages.
var (
	validIntegrators    = []string{"euler", "rk4", "staged-euler", "staged-heun", "staged-rk4"}
	validNormalizations = []string{"never", "step", "read"}
)

// LagCompConfig holds the tuning parameters for lag compensation. Every
// field is optional; the Get* methods supply the default for a nil field.
type LagCompConfig struct {
	// Step control
	IntegDt  *float64 `json:"integ_dt,omitempty"`
	IntegTol *float64 `json:"integ_tol,omitempty"`
	MaxSteps *int     `json:"max_steps,omitempty"`

	Integrator              *string `json:"integrator,omitempty"`
	QuaternionNormalization *string `json:"quaternion_normalization,omitempty"`

	// BufferedState is true when the transmitted state is a copy of the
	// working state and may be overwritten by send-side compensation.
	BufferedState *bool `json:"buffered_state,omitempty"`

	Debug      *bool `json:"debug,omitempty"`
	DebugLevel *int  `json:"debug_level,omitempty"`

	Lookahead *string `json:"lookahead,omitempty"` // duration string like "100ms"
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyLagCompConfig returns a LagCompConfig with all fields set to nil.
func EmptyLagCompConfig() *LagCompConfig {
	return &LagCompConfig{}
}

// DefaultLagCompConfig returns a config with every field populated with its
// default value.
func DefaultLagCompConfig() *LagCompConfig {
	var empty LagCompConfig
	return &LagCompConfig{
		IntegDt:                 ptrFloat64(empty.GetIntegDt()),
		IntegTol:                ptrFloat64(empty.GetIntegTol()),
		MaxSteps:                ptrInt(empty.GetMaxSteps()),
		Integrator:              ptrString(empty.GetIntegrator()),
		QuaternionNormalization: ptrString(empty.GetQuaternionNormalization()),
		BufferedState:           ptrBool(empty.GetBufferedState()),
		Debug:                   ptrBool(empty.GetDebug()),
		DebugLevel:              ptrInt(empty.GetDebugLevel()),
		Lookahead:               ptrString(empty.GetLookahead().String()),
	}
}

// LoadLagCompConfig loads a LagCompConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to their defaults, so partial configs are safe.
func LoadLagCompConfig(path string) (*LagCompConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyLagCompConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *LagCompConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/ or cmd/lagcomp/
		"../../../" + DefaultConfigPath, // deeper packages
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadLagCompConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *LagCompConfig) Validate() error {
	dt, tol := c.GetIntegDt(), c.GetIntegTol()
	if c.IntegDt != nil && !(dt > 0) {
		return fmt.Errorf("integ_dt must be positive, got %g", dt)
	}
	if c.IntegTol != nil && !(tol >= 0) {
		return fmt.Errorf("integ_tol must be non-negative, got %g", tol)
	}
	if dt <= tol {
		return fmt.Errorf("integ_dt %g must exceed integ_tol %g", dt, tol)
	}

	if c.MaxSteps != nil && *c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", *c.MaxSteps)
	}

	if c.Integrator != nil && !contains(validIntegrators, *c.Integrator) {
		return fmt.Errorf("unknown integrator %q (valid: %v)", *c.Integrator, validIntegrators)
	}
	if c.QuaternionNormalization != nil && !contains(validNormalizations, *c.QuaternionNormalization) {
		return fmt.Errorf("unknown quaternion_normalization %q (valid: %v)",
			*c.QuaternionNormalization, validNormalizations)
	}

	if c.DebugLevel != nil && (*c.DebugLevel < 0 || *c.DebugLevel > 6) {
		return fmt.Errorf("debug_level must be between 0 and 6, got %d", *c.DebugLevel)
	}

	if c.Lookahead != nil && *c.Lookahead != "" {
		d, err := time.ParseDuration(*c.Lookahead)
		if err != nil {
			return fmt.Errorf("invalid lookahead '%s': %w", *c.Lookahead, err)
		}
		if d < 0 {
			return fmt.Errorf("lookahead must be non-negative, got %s", d)
		}
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// GetIntegDt returns the integ_dt value or the default.
func (c *LagCompConfig) GetIntegDt() float64 {
	if c.IntegDt == nil {
		return 0.05
	}
	return *c.IntegDt
}

// GetIntegTol returns the integ_tol value or the default.
func (c *LagCompConfig) GetIntegTol() float64 {
	if c.IntegTol == nil {
		return 1.0e-8
	}
	return *c.IntegTol
}

// GetMaxSteps returns the max_steps value or the default.
func (c *LagCompConfig) GetMaxSteps() int {
	if c.MaxSteps == nil {
		return 100000
	}
	return *c.MaxSteps
}

// GetIntegrator returns the integrator name or the default host-style
// staged Euler integrator.
func (c *LagCompConfig) GetIntegrator() string {
	if c.Integrator == nil || *c.Integrator == "" {
		return "staged-euler"
	}
	return *c.Integrator
}

// GetQuaternionNormalization returns the normalisation policy or "step",
// which keeps the attitude on the unit sphere under the staged Euler default.
func (c *LagCompConfig) GetQuaternionNormalization() string {
	if c.QuaternionNormalization == nil || *c.QuaternionNormalization == "" {
		return "step"
	}
	return *c.QuaternionNormalization
}

// GetBufferedState returns the buffered_state value or the default.
func (c *LagCompConfig) GetBufferedState() bool {
	if c.BufferedState == nil {
		return true
	}
	return *c.BufferedState
}

// GetDebug returns the debug value or the default.
func (c *LagCompConfig) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}

// GetDebugLevel returns the debug_level value or the default.
func (c *LagCompConfig) GetDebugLevel() int {
	if c.DebugLevel == nil {
		return 0
	}
	return *c.DebugLevel
}

// GetLookahead parses and returns the Lookahead as a time.Duration.
func (c *LagCompConfig) GetLookahead() time.Duration {
	if c.Lookahead == nil || *c.Lookahead == "" {
		return 100 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.Lookahead)
	if err != nil {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}
