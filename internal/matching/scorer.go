package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/imadgeboyega/kiekky-matching/internal/profile"
)

// Point budget per category
const (
	maxInterestPoints    = 40
	pointsPerInterest    = 10
	maxAgePoints         = 20
	maxGenderPoints      = 10
	maxLocationPoints    = 20
	maxBioPoints         = 10
	pointsPerBioWord     = 2
	maxLifestylePoints   = 9
	pointsPerLifestyle   = 3
	maxPersonalityPoints = 6
	pointsPerTrait       = 3

	// Lifestyle, personality and chemistry are bonuses on top of this
	primaryBudget = maxInterestPoints + maxAgePoints + maxGenderPoints + maxLocationPoints + maxBioPoints

	cityTokenPoints = 6
	minBioWordLen   = 4
)

// Scorer computes compatibility between two profiles. Apart from the
// chemistry bonus it is a pure function of its inputs.
type Scorer struct {
	chemistry ChemistrySource
	now       func() time.Time
}

// NewScorer creates a scorer drawing its bonus from chemistry
func NewScorer(chemistry ChemistrySource) *Scorer {
	if chemistry == nil {
		chemistry = NoChemistry{}
	}
	return &Scorer{chemistry: chemistry, now: time.Now}
}

// category is the outcome of one scoring rule
type category struct {
	name   string
	points int
	reason string
	caveat string
}

// Score rates the pair (a, b). It never fails: missing data scores zero
// for the affected category and is reported in Caveats.
func (s *Scorer) Score(a, b *profile.Profile) *CompatibilityResult {
	categories := []category{
		scoreInterests(a, b),
		scoreAge(a.Age, b.Age),
		scoreGender(a.Gender, b.Gender),
		scoreLocation(a, b),
		scoreBio(a.Bio, b.Bio),
		scoreLifestyle(a, b),
		scorePersonality(a.Bio, b.Bio),
	}
	if bonus := clamp(s.chemistry.Bonus(a.UserID, b.UserID), 0, s.chemistry.Max()); bonus > 0 {
		categories = append(categories, category{
			name:   CategoryChemistry,
			points: bonus,
			reason: "A little extra chemistry",
		})
	}

	result := &CompatibilityResult{
		Breakdown:  make(Breakdown, len(categories)),
		Reasons:    Reasons{},
		ComputedAt: s.now().UTC(),
	}

	raw := 0
	for _, c := range categories {
		result.Breakdown[c.name] = c.points
		raw += c.points
		if c.points > 0 && c.reason != "" {
			result.Reasons = append(result.Reasons, c.reason)
		}
		if c.points == 0 && c.caveat != "" {
			result.Caveats = append(result.Caveats, c.caveat)
		}
	}

	result.Score = clamp(int(math.Round(100*float64(raw)/float64(primaryBudget))), 0, 100)
	result.Tier = TierFor(result.Score)
	return result
}

func scoreInterests(a, b *profile.Profile) category {
	c := category{name: CategoryInterests}
	if len(a.Interests) == 0 || len(b.Interests) == 0 {
		c.caveat = "Interests missing, no overlap could be measured"
		return c
	}

	shared := intersect(normalizeLabels(a.Interests), normalizeLabels(b.Interests))
	if len(shared) == 0 {
		return c
	}

	c.points = min(len(shared)*pointsPerInterest, maxInterestPoints)
	if len(shared) == 1 {
		c.reason = fmt.Sprintf("You both enjoy %s", shared[0])
	} else {
		c.reason = fmt.Sprintf("%d shared interests: %s", len(shared), strings.Join(shared, ", "))
	}
	return c
}

// ageTiers maps an absolute age gap to points. Gaps beyond the last tier
// still earn the floor.
var ageTiers = []struct {
	maxGap int
	points int
	reason string
}{
	{0, 20, "Same age"},
	{2, 16, "Ages within 2 years"},
	{5, 12, "Ages within 5 years"},
	{10, 7, "Ages within 10 years"},
}

const ageFloorPoints = 3

func scoreAge(a, b int) category {
	c := category{name: CategoryAge}
	if a <= 0 || b <= 0 {
		c.caveat = "Age missing, age compatibility not scored"
		return c
	}

	gap := a - b
	if gap < 0 {
		gap = -gap
	}
	for _, tier := range ageTiers {
		if gap <= tier.maxGap {
			c.points = tier.points
			c.reason = tier.reason
			return c
		}
	}
	c.points = ageFloorPoints
	c.reason = fmt.Sprintf("%d years apart", gap)
	return c
}

func scoreGender(a, b string) category {
	c := category{name: CategoryGender}
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		c.caveat = "Gender missing, gender compatibility not scored"
		return c
	}
	if gendersCompatible(a, b) {
		c.points = maxGenderPoints
		c.reason = "Compatible genders"
	}
	return c
}

// distanceTiers maps kilometres between two users to points
var distanceTiers = []struct {
	maxKm  float64
	points int
}{
	{10, 16},
	{25, 12},
	{50, 8},
	{100, 4},
}

func scoreLocation(a, b *profile.Profile) category {
	c := category{name: CategoryLocation}
	cityA, cityB := normalizeCity(a.City), normalizeCity(b.City)

	if cityA != "" && cityA == cityB {
		c.points = maxLocationPoints
		c.reason = fmt.Sprintf("Both in %s", strings.TrimSpace(a.City))
		return c
	}

	if a.Location != nil && b.Location != nil {
		km := profile.DistanceKm(*a.Location, *b.Location)
		for _, tier := range distanceTiers {
			if km <= tier.maxKm {
				c.points = tier.points
				c.reason = fmt.Sprintf("%.0f km apart", km)
				return c
			}
		}
		return c
	}

	if cityA == "" || cityB == "" {
		c.caveat = "Location missing, proximity not scored"
		return c
	}

	// Coarse fallback: "Lagos Island" and "Lagos Mainland" share a token
	if shared := intersect(tokens(cityA, 1), tokens(cityB, 1)); len(shared) > 0 {
		c.points = cityTokenPoints
		c.reason = "Nearby cities"
	}
	return c
}

func scoreBio(a, b string) category {
	c := category{name: CategoryBio}
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		c.caveat = "Bio missing, bios not compared"
		return c
	}

	shared := intersect(bioWords(a), bioWords(b))
	if len(shared) == 0 {
		return c
	}
	c.points = min(len(shared)*pointsPerBioWord, maxBioPoints)
	c.reason = fmt.Sprintf("Your bios both mention %s", strings.Join(firstN(shared, 3), ", "))
	return c
}

func scoreLifestyle(a, b *profile.Profile) category {
	c := category{name: CategoryLifestyle}
	shared := intersect(lifestylesOf(a.Interests), lifestylesOf(b.Interests))
	if len(shared) == 0 {
		return c
	}
	c.points = min(len(shared)*pointsPerLifestyle, maxLifestylePoints)
	c.reason = fmt.Sprintf("Similar lifestyles: %s", strings.Join(shared, ", "))
	return c
}

func scorePersonality(a, b string) category {
	c := category{name: CategoryPersonality}
	shared := intersect(traitsOf(a), traitsOf(b))
	if len(shared) == 0 {
		return c
	}
	c.points = min(len(shared)*pointsPerTrait, maxPersonalityPoints)
	c.reason = fmt.Sprintf("Both come across as %s", strings.Join(shared, " and "))
	return c
}

func lifestylesOf(interests []string) []string {
	var out []string
	for _, label := range normalizeLabels(interests) {
		if cat, ok := interestCategory[label]; ok {
			out = append(out, cat)
		}
	}
	return out
}

func traitsOf(bio string) []string {
	var out []string
	for _, word := range tokens(strings.ToLower(bio), 1) {
		if trait, ok := traitForWord[word]; ok {
			out = append(out, trait)
		}
	}
	return out
}

func bioWords(bio string) []string {
	var out []string
	for _, word := range tokens(strings.ToLower(bio), minBioWordLen) {
		if !bioStopwords[word] {
			out = append(out, word)
		}
	}
	return out
}

// tokens splits on anything that is not a letter or digit
func tokens(s string, minLen int) []string {
	var out []string
	for _, field := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(field)) >= minLen {
			out = append(out, field)
		}
	}
	return out
}

func normalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func normalizeCity(city string) string {
	return strings.Join(strings.Fields(strings.ToLower(city)), " ")
}

// intersect returns the sorted distinct values present in both slices
func intersect(a, b []string) []string {
	inA := make(map[string]bool, len(a))
	for _, v := range a {
		inA[v] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, v := range b {
		if inA[v] && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func firstN(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
