package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/khanglvm/posematch/internal/matching"
	"github.com/khanglvm/posematch/internal/posedb"
)

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("searchmode", validateSearchMode)
	_ = configValidate.RegisterValidation("interruptmode", validateInterruptMode)
}

func validateSearchMode(fl validator.FieldLevel) bool {
	_, err := posedb.ParseMode(fl.Field().String())
	return err == nil
}

func validateInterruptMode(fl validator.FieldLevel) bool {
	_, err := matching.ParseInterruptMode(fl.Field().String())
	return err == nil
}

// Validate checks field constraints and then the settings semantics.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := configValidate.Struct(cfg); err != nil {
		return fmt.Errorf("field validation failed: %w", err)
	}
	if cfg.Settings != nil {
		if err := configValidate.Struct(cfg.Settings); err != nil {
			return fmt.Errorf("settings validation failed: %w", err)
		}
		if err := ValidateSettings(cfg.Settings); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(cfg.Databases))
	for name := range cfg.Databases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ValidateDatabase(name, cfg.Databases[name]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDatabase checks a single database entry before it is added.
func ValidateDatabase(name string, db *DatabaseConfig) error {
	if name == "" {
		return errors.New("database name is empty")
	}
	if db == nil {
		return fmt.Errorf("database '%s': missing entry", name)
	}
	if err := configValidate.Struct(db); err != nil {
		return fmt.Errorf("database '%s': %w", name, err)
	}
	return nil
}

// ValidateSettings checks relations between settings that struct tags
// cannot express.
func ValidateSettings(s *Settings) error {
	if s.PlayRate.Min <= 0 {
		return fmt.Errorf("playRate.min must be positive, got %g", s.PlayRate.Min)
	}
	if s.PlayRate.Min > s.PlayRate.Max {
		return fmt.Errorf("playRate interval [%g, %g] is inverted", s.PlayRate.Min, s.PlayRate.Max)
	}
	if s.PoseJumpThreshold.Min > s.PoseJumpThreshold.Max {
		return fmt.Errorf("poseJumpThreshold interval [%g, %g] is inverted",
			s.PoseJumpThreshold.Min, s.PoseJumpThreshold.Max)
	}
	if s.ReselectionPenalty > 0 && s.ReselectionWindowSeconds == 0 {
		return errors.New("reselectionPenalty has no effect without reselectionWindowSeconds")
	}
	return nil
}
