// Package profile holds the factory solder profiles and the seed-file loader.
package profile

import "reflow_oven/internal/models"

// Builtin returns the factory profiles. Slots 0..3 are locked vendor
// profiles and slot 4 is an unlocked template.
func Builtin() []models.Profile {
	return []models.Profile{
		{
			// Soak 140-180C/60-90s, above liquidus for 30-60s, peak 200-230C
			ID:            0,
			Description:   "4300 63SN/37PB-a",
			Liquidus:      183,
			Ramp1Slope:    1.0,
			SoakTemp1:     140,
			SoakTemp2:     183,
			SoakTime:      90,
			Ramp2Slope:    1.4,
			PeakTemp:      210,
			PeakDwell:     15,
			RampDownSlope: -3,
		},
		{
			ID:            1,
			Description:   "4300 63SN/37PB-b",
			Liquidus:      183,
			Ramp1Slope:    1.0,
			SoakTemp1:     140,
			SoakTemp2:     183,
			SoakTime:      120,
			Ramp2Slope:    1.4,
			PeakTemp:      210,
			PeakDwell:     15,
			RampDownSlope: -3,
		},
		{
			// Soak 90-140C/60-90s, above liquidus for 60s, peak 158-165C
			ID:            2,
			Description:   "NC-31 LOW-TEMP LF",
			Flags:         models.ProfileLeadFree,
			Liquidus:      140,
			Ramp1Slope:    1.0,
			SoakTemp1:     90,
			SoakTemp2:     140,
			SoakTime:      75,
			Ramp2Slope:    3,
			PeakTemp:      160,
			PeakDwell:     15,
			RampDownSlope: -3,
		},
		{
			// Soak 140-200C/60-90s, above liquidus for 30-60s, peak 230-249C
			ID:            3,
			Description:   "AMTECH SYNTECH-LF",
			Flags:         models.ProfileLeadFree,
			Liquidus:      219,
			Ramp1Slope:    1.0,
			SoakTemp1:     140,
			SoakTemp2:     200,
			SoakTime:      75,
			Ramp2Slope:    3,
			PeakTemp:      240,
			PeakDwell:     20,
			RampDownSlope: -3,
		},
		{
			ID:            4,
			Description:   "Empty",
			Flags:         models.ProfileUnlocked,
			Liquidus:      183,
			Ramp1Slope:    0.8,
			SoakTemp1:     140,
			SoakTemp2:     183,
			SoakTime:      90,
			Ramp2Slope:    1.4,
			PeakTemp:      220,
			PeakDwell:     10,
			RampDownSlope: -3,
		},
	}
}
