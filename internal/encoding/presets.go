package encoding

import "convoy/internal/config"

// SelectPreset returns the first preset whose MaxHeight covers height. Taller
// or unknown sources use the largest preset. presets must be sorted by
// MaxHeight, as config normalization guarantees.
func SelectPreset(height int, presets []config.QualityPreset) config.QualityPreset {
	if len(presets) == 0 {
		return config.QualityPreset{Name: "1080p", MaxHeight: 1080, CRF: 25, Preset: "veryfast"}
	}
	if height > 0 {
		for _, preset := range presets {
			if height <= preset.MaxHeight {
				return preset
			}
		}
	}
	return presets[len(presets)-1]
}
