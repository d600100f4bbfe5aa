package releases

import (
	"strings"
)

// AppName is what an asset file name says about its contents
type AppName struct {
	Name        string
	Version     string
	Tweaks      []string
	Description string
}

// ParseAssetName splits Name_Version_Tweak1_Tweak2@suffix.ipa. Anything
// after '@' is an uploader tag and is dropped. Names that do not follow
// the pattern keep the whole stem as the application name.
func ParseAssetName(fileName string) AppName {
	stem := strings.TrimSuffix(fileName, ".ipa")

	parts := strings.SplitN(stem, "_", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
		return AppName{Name: stem, Version: "Unknown", Description: describe(nil)}
	}

	tweakPart, _, _ := strings.Cut(parts[2], "@")
	var tweaks []string
	for _, t := range strings.Split(tweakPart, "_") {
		if t = strings.TrimSpace(t); t != "" {
			tweaks = append(tweaks, t)
		}
	}

	return AppName{
		Name:        parts[0],
		Version:     parts[1],
		Tweaks:      tweaks,
		Description: describe(tweaks),
	}
}

func describe(tweaks []string) string {
	if len(tweaks) == 0 {
		return "Injected with None"
	}
	return "Injected with " + strings.Join(tweaks, " ")
}
