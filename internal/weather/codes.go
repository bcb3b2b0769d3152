package weather

import "weekplan/internal/types"

// WMO weather interpretation codes, grouped by the precipitation category
// they imply. The groups are checked in severity order so an ambiguous code
// resolves to the most severe category:
// thunderstorm with hail > thunderstorm > snow > freezing rain > rain.
var (
	hailCodes         = codeSet(96, 99)
	thunderstormCodes = codeSet(95)
	snowCodes         = codeSet(71, 73, 75, 77, 85, 86)
	freezingRainCodes = codeSet(56, 57, 66, 67)
	rainCodes         = codeSet(51, 53, 55, 61, 63, 65, 80, 81, 82)
)

func codeSet(codes ...int) map[int]struct{} {
	s := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// PrecipTypeForCode maps a WMO weather code to its precipitation category.
// Unknown or clear-sky codes map to PrecipNone.
func PrecipTypeForCode(code *int) types.PrecipType {
	if code == nil {
		return types.PrecipNone
	}
	c := *code
	switch {
	case contains(hailCodes, c):
		return types.PrecipThunderstormHail
	case contains(thunderstormCodes, c):
		return types.PrecipThunderstorm
	case contains(snowCodes, c):
		return types.PrecipSnow
	case contains(freezingRainCodes, c):
		return types.PrecipFreezingRain
	case contains(rainCodes, c):
		return types.PrecipRain
	default:
		return types.PrecipNone
	}
}

// IsSnowCode reports whether the code indicates snowfall. Used for the
// snowy-ground flag alongside the snowfall accumulation sum.
func IsSnowCode(code *int) bool {
	if code == nil {
		return false
	}
	return contains(snowCodes, *code)
}

func contains(s map[int]struct{}, c int) bool {
	_, ok := s[c]
	return ok
}

// Wind thresholds in mph. A day is flagged windy when sustained wind or
// gusts reach these values.
const (
	WindySustainedMPH = 15.0
	WindyGustMPH      = 25.0
)

// wetGroundProbThreshold is the precipitation probability (%) at or above
// which the ground is assumed wet even without measured rainfall.
const wetGroundProbThreshold = 40
