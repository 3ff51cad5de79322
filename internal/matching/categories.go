package matching

// Interest labels bucketed into lifestyle categories. Matching is on the
// lowercased label.
var lifestyleCategories = map[string][]string{
	"active": {
		"fitness", "gym", "running", "yoga", "cycling", "swimming", "sports",
		"football", "basketball", "tennis", "dancing", "martial arts",
	},
	"creative": {
		"art", "painting", "music", "photography", "writing", "design",
		"drawing", "crafts", "poetry", "singing", "film making",
	},
	"social": {
		"parties", "nightlife", "clubbing", "socializing", "volunteering",
		"networking", "karaoke", "board games", "gaming",
	},
	"intellectual": {
		"reading", "books", "science", "technology", "philosophy", "history",
		"chess", "podcasts", "languages", "politics",
	},
	"outdoor": {
		"hiking", "camping", "travel", "beach", "nature", "fishing",
		"gardening", "climbing", "road trips",
	},
	"cultural": {
		"movies", "theatre", "museums", "cooking", "food", "fashion",
		"concerts", "festivals", "wine", "anime",
	},
}

// Bio keywords bucketed into personality traits
var personalityTraits = map[string][]string{
	"adventurous": {"adventure", "adventurous", "explore", "exploring", "spontaneous", "wanderlust"},
	"calm":        {"calm", "chill", "relaxed", "peaceful", "easygoing", "quiet"},
	"ambitious":   {"ambitious", "driven", "career", "goals", "hustle", "entrepreneur"},
	"caring":      {"caring", "kind", "family", "loyal", "honest", "empathetic"},
	"funny":       {"funny", "humor", "humour", "laugh", "jokes", "witty"},
	"curious":     {"curious", "creative", "artistic", "imaginative", "learning"},
}

// Words ignored when comparing bios
var bioStopwords = map[string]bool{
	"about": true, "also": true, "been": true, "from": true, "have": true,
	"into": true, "just": true, "more": true, "than": true, "that": true,
	"them": true, "they": true, "this": true, "very": true, "were": true,
	"what": true, "when": true, "will": true, "with": true, "your": true,
}

// genderPairs lists compatible gender pairs. Lookups are symmetric.
var genderPairs = map[[2]string]bool{
	{"female", "male"}:           true,
	{"female", "non-binary"}:     true,
	{"male", "non-binary"}:       true,
	{"non-binary", "non-binary"}: true,
}

// interestCategory and traitForWord invert the tables above
var (
	interestCategory = invert(lifestyleCategories)
	traitForWord     = invert(personalityTraits)
)

func invert(buckets map[string][]string) map[string]string {
	out := make(map[string]string)
	for bucket, members := range buckets {
		for _, m := range members {
			out[m] = bucket
		}
	}
	return out
}

func gendersCompatible(a, b string) bool {
	if a > b {
		a, b = b, a
	}
	return genderPairs[[2]string{a, b}]
}
