package board

import (
	"strings"

	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

// Scenario is a quick filter over common tenant situations, matched by
// keyword against a post's summary and details.
type Scenario struct {
	Slug     string
	Label    string
	Keywords []string
}

var Scenarios = []Scenario{
	{Slug: "deposit", Label: "Security deposit", Keywords: []string{"deposit", "withheld", "move-out", "move out", "deduction"}},
	{Slug: "repairs", Label: "Repairs & maintenance", Keywords: []string{"repair", "broken", "leak", "mold", "heat", "maintenance", "pest"}},
	{Slug: "eviction", Label: "Eviction", Keywords: []string{"evict", "notice to quit", "notice to vacate", "unlawful detainer", "lockout"}},
	{Slug: "rent", Label: "Rent increases", Keywords: []string{"rent increase", "raise the rent", "rent hike", "late fee", "rent control", "monthly rent"}},
	{Slug: "lease-break", Label: "Breaking a lease", Keywords: []string{"break my lease", "break the lease", "early termination", "sublet", "terminate"}},
	{Slug: "roommates", Label: "Roommates", Keywords: []string{"roommate", "housemate", "co-tenant", "subtenant"}},
}

func LookupScenario(slug string) (Scenario, bool) {
	for _, s := range Scenarios {
		if s.Slug == slug {
			return s, true
		}
	}
	return Scenario{}, false
}

// matchesText expects text already lowercased.
func (s Scenario) matchesText(text string) bool {
	for _, kw := range s.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func (s Scenario) Matches(p leaseqa.Post) bool {
	return s.matchesText(searchText(p))
}

// ScenariosFor lists the scenarios a post falls under, in table order.
func ScenariosFor(p leaseqa.Post) []Scenario {
	text := searchText(p)
	var out []Scenario
	for _, s := range Scenarios {
		if s.matchesText(text) {
			out = append(out, s)
		}
	}
	return out
}
