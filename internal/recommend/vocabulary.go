package recommend

import "strings"

// Scent-note keyword sets for the fixed season and mood vocabulary. Unknown
// keys resolve to the fresh family so a bad tag degrades to a sensible
// default instead of failing.
var (
	seasonKeywords = map[string][]string{
		"spring": {"floral", "green", "rose", "peony", "lily", "fresh"},
		"summer": {"citrus", "aquatic", "marine", "bergamot", "lemon", "neroli"},
		"fall":   {"amber", "spice", "cinnamon", "woody", "patchouli", "tobacco"},
		"winter": {"oud", "vanilla", "musk", "leather", "incense", "tonka"},
	}

	moodKeywords = map[string][]string{
		"fresh":      {"citrus", "green", "aquatic", "mint", "bergamot"},
		"sensual":    {"musk", "amber", "vanilla", "ylang"},
		"woody":      {"sandalwood", "cedar", "vetiver", "oakmoss", "patchouli"},
		"spicy":      {"pepper", "cardamom", "cinnamon", "clove", "ginger"},
		"sweet":      {"vanilla", "caramel", "praline", "honey", "tonka"},
		"romantic":   {"rose", "jasmine", "peony", "iris", "violet"},
		"bold":       {"oud", "leather", "tobacco", "incense"},
		"mysterious": {"incense", "smoke", "resin", "labdanum", "myrrh"},
	}

	defaultKeywords = moodKeywords["fresh"]
)

// SeasonKeywords resolves a season tag to its scent-note keyword set.
func SeasonKeywords(season string) []string {
	if kw, ok := seasonKeywords[normalize(season)]; ok {
		return kw
	}
	return defaultKeywords
}

// MoodKeywords resolves a mood tag to its scent-note keyword set.
func MoodKeywords(mood string) []string {
	if kw, ok := moodKeywords[normalize(mood)]; ok {
		return kw
	}
	return defaultKeywords
}

func normalize(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
