package models

import (
	"errors"
	"fmt"
	"strings"
)

// MaxProfiles is the number of profile slots in the store.
const MaxProfiles = 10

// MaxDescriptionLen bounds Profile.Description.
const MaxDescriptionLen = 38

// ProfileFlags are properties of a stored profile.
type ProfileFlags uint8

const (
	ProfileUnlocked ProfileFlags = 1 << iota
	ProfileLeadFree
)

// ErrInvalidProfile is wrapped by every Profile.Validate failure.
var ErrInvalidProfile = errors.New("invalid profile")

// Profile is the immutable description of one solder profile.
// Temperatures are °C, slopes are °C per tick and durations are ticks.
type Profile struct {
	ID            int          `json:"id"`
	Description   string       `json:"description"`
	Flags         ProfileFlags `json:"flags"`
	Liquidus      float64      `json:"liquidus_c"`
	Ramp1Slope    float64      `json:"ramp1_slope"`
	SoakTemp1     float64      `json:"soak_temp1_c"`
	SoakTemp2     float64      `json:"soak_temp2_c"`
	SoakTime      int          `json:"soak_time_s"`
	Ramp2Slope    float64      `json:"ramp2_slope"`
	PeakTemp      float64      `json:"peak_temp_c"`
	PeakDwell     int          `json:"peak_dwell_s"`
	RampDownSlope float64      `json:"ramp_down_slope"`
}

// Locked reports whether the slot is protected against modification.
func (p Profile) Locked() bool {
	return p.Flags&ProfileUnlocked == 0
}

// LeadFree reports whether the profile is for lead-free paste.
func (p Profile) LeadFree() bool {
	return p.Flags&ProfileLeadFree != 0
}

// Validate checks the ordering and sign invariants the executor relies on.
func (p Profile) Validate() error {
	var problems []string
	if p.ID < 0 || p.ID >= MaxProfiles {
		problems = append(problems, fmt.Sprintf("slot %d out of range 0..%d", p.ID, MaxProfiles-1))
	}
	if strings.TrimSpace(p.Description) == "" {
		problems = append(problems, "description is empty")
	}
	if len(p.Description) > MaxDescriptionLen {
		problems = append(problems, fmt.Sprintf("description longer than %d", MaxDescriptionLen))
	}
	if !(p.SoakTemp1 < p.SoakTemp2) {
		problems = append(problems, "soak_temp1 must be below soak_temp2")
	}
	if !(p.SoakTemp2 <= p.PeakTemp) {
		problems = append(problems, "soak_temp2 must not exceed peak_temp")
	}
	// Written as negations so NaN fails them.
	if !(p.Ramp1Slope > 0) || !(p.Ramp2Slope > 0) {
		problems = append(problems, "ramp slopes must be positive")
	}
	if !(p.RampDownSlope < 0) {
		problems = append(problems, "ramp_down_slope must be negative")
	}
	if p.SoakTime <= 0 {
		problems = append(problems, "soak_time must be positive")
	}
	if p.PeakDwell < 0 {
		problems = append(problems, "peak_dwell must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(problems, "; "))
	}
	return nil
}
