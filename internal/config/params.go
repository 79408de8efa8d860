package config

import (
	"fmt"

	"github.com/khanglvm/posematch/internal/matching"
	"github.com/khanglvm/posematch/internal/posedb"
)

// Params converts the settings into matcher parameters.
func (s *Settings) Params() (matching.Params, error) {
	if s == nil {
		return matching.DefaultParams(), nil
	}
	mode, err := matching.ParseInterruptMode(s.InterruptMode)
	if err != nil {
		return matching.Params{}, fmt.Errorf("invalid interruptMode: %w", err)
	}
	return matching.Params{
		Throttle:             s.ThrottleSeconds,
		PoseJumpThreshold:    s.PoseJumpThreshold,
		ReselectionWindow:    s.ReselectionWindowSeconds,
		ReselectionPenalty:   s.ReselectionPenalty,
		PlayRate:             s.PlayRate,
		SpeedMultiplier:      s.SpeedMultiplier,
		Interrupt:            mode,
		UseCachedChannelData: s.UseCachedChannelData,
	}, nil
}

// Apply copies the per-database overrides onto a loaded database. It must
// run before the database is built.
func (d *DatabaseConfig) Apply(db *posedb.Database) error {
	if d.Mode != "" {
		mode, err := posedb.ParseMode(d.Mode)
		if err != nil {
			return fmt.Errorf("database %s: %w", db.Name, err)
		}
		db.Mode = mode
	}
	if d.KNNNeighbors > 0 {
		db.KNNNeighbors = d.KNNNeighbors
	}
	return nil
}
