package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"reflow_oven/internal/models"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Profiles []seedProfile `yaml:"profiles"`
}

type seedProfile struct {
	Slot          int     `yaml:"slot"`
	Description   string  `yaml:"description"`
	Locked        *bool   `yaml:"locked"`
	LeadFree      bool    `yaml:"lead_free"`
	Liquidus      float64 `yaml:"liquidus"`
	Ramp1Slope    float64 `yaml:"ramp1_slope"`
	SoakTemp1     float64 `yaml:"soak_temp1"`
	SoakTemp2     float64 `yaml:"soak_temp2"`
	SoakTime      int     `yaml:"soak_time"`
	Ramp2Slope    float64 `yaml:"ramp2_slope"`
	PeakTemp      float64 `yaml:"peak_temp"`
	PeakDwell     int     `yaml:"peak_dwell"`
	RampDownSlope float64 `yaml:"ramp_down_slope"`
}

func (s seedProfile) profile() models.Profile {
	p := models.Profile{
		ID:            s.Slot,
		Description:   s.Description,
		Liquidus:      s.Liquidus,
		Ramp1Slope:    s.Ramp1Slope,
		SoakTemp1:     s.SoakTemp1,
		SoakTemp2:     s.SoakTemp2,
		SoakTime:      s.SoakTime,
		Ramp2Slope:    s.Ramp2Slope,
		PeakTemp:      s.PeakTemp,
		PeakDwell:     s.PeakDwell,
		RampDownSlope: s.RampDownSlope,
	}
	// Seeded profiles are locked unless the file says otherwise.
	if s.Locked != nil && !*s.Locked {
		p.Flags |= models.ProfileUnlocked
	}
	if s.LeadFree {
		p.Flags |= models.ProfileLeadFree
	}
	return p
}

// Decode parses a seed document. Every profile is validated and slots
// must be unique.
func Decode(r io.Reader) ([]models.Profile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode profiles: %w", err)
	}

	seen := make(map[int]bool, len(f.Profiles))
	out := make([]models.Profile, 0, len(f.Profiles))
	for _, sp := range f.Profiles {
		p := sp.profile()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.Description, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("profile %q: %w: slot %d used twice", p.Description, models.ErrInvalidProfile, p.ID)
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, nil
}

// Load reads a seed file from disk.
func Load(path string) ([]models.Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return Decode(bytes.NewReader(b))
}

// Merge overlays seeded profiles on the built-in set by slot.
func Merge(base, seeded []models.Profile) []models.Profile {
	bySlot := make(map[int]models.Profile, len(base)+len(seeded))
	for _, p := range base {
		bySlot[p.ID] = p
	}
	for _, p := range seeded {
		bySlot[p.ID] = p
	}
	out := make([]models.Profile, 0, len(bySlot))
	for slot := 0; slot < models.MaxProfiles; slot++ {
		if p, ok := bySlot[slot]; ok {
			out = append(out, p)
		}
	}
	return out
}
