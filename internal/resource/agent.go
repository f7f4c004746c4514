package resource

import "strings"

// nameSuffixes are generational suffixes kept with the family name.
var nameSuffixes = map[string]bool{
	"jr":  true,
	"jr.": true,
	"sr":  true,
	"sr.": true,
	"ii":  true,
	"iii": true,
	"iv":  true,
}

// NewAgent builds an agent from a display name. Both "Family, Given" and
// "Given Family" forms are understood.
func NewAgent(name string) Agent {
	given, family := SplitName(name)
	return Agent{
		NameString: displayName(given, family),
		GivenName:  given,
		FamilyName: family,
	}
}

// NewPersonAgent builds an agent from already separated name parts.
func NewPersonAgent(given, family string) Agent {
	given = strings.TrimSpace(given)
	family = strings.TrimSpace(family)
	return Agent{
		NameString: displayName(given, family),
		GivenName:  given,
		FamilyName: family,
	}
}

// SplitName splits a display name into given and family parts.
func SplitName(name string) (given, family string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}

	// Catalogue form: "Family, Given"
	if idx := strings.Index(name, ","); idx >= 0 {
		family = strings.TrimSpace(name[:idx])
		given = strings.TrimSpace(name[idx+1:])
		return given, family
	}

	parts := strings.Fields(name)
	if len(parts) == 1 {
		return "", parts[0]
	}

	lastPart := strings.ToLower(parts[len(parts)-1])
	if nameSuffixes[lastPart] && len(parts) > 2 {
		family = parts[len(parts)-2] + " " + parts[len(parts)-1]
		given = strings.Join(parts[:len(parts)-2], " ")
	} else {
		family = parts[len(parts)-1]
		given = strings.Join(parts[:len(parts)-1], " ")
	}
	return given, family
}

// Family returns the agent's family name, deriving it from the display
// name when the structured field is empty.
func (a Agent) Family() string {
	if a.FamilyName != "" {
		return a.FamilyName
	}
	_, family := SplitName(a.NameString)
	return family
}

// displayName renders "Family Given", the form catalogue records use.
func displayName(given, family string) string {
	return strings.TrimSpace(family + " " + given)
}
