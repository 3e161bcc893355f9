package address

import (
	"regexp"
	"strings"
)

// Address components in output order.
const (
	AddressNumber            = "AddressNumber"
	StreetNamePreDirectional = "StreetNamePreDirectional"
	StreetName               = "StreetName"
	StreetNamePostType       = "StreetNamePostType"
	OccupancyType            = "OccupancyType"
	OccupancyIdentifier      = "OccupancyIdentifier"
	PlaceName                = "PlaceName"
	StateName                = "StateName"
	ZipCode                  = "ZipCode"
)

// ComponentOrder is the order in which tagged components are reassembled.
var ComponentOrder = []string{
	AddressNumber,
	StreetNamePreDirectional,
	StreetName,
	StreetNamePostType,
	OccupancyType,
	OccupancyIdentifier,
	PlaceName,
	StateName,
	ZipCode,
}

var (
	numberPattern = regexp.MustCompile(`^\d+(?:-\d+)?[A-Za-z]?$`)
	zipPattern    = regexp.MustCompile(`^\d{5}(?:-\d{4})?$`)
)

var streetTypes = setOf(
	"street", "st", "avenue", "ave", "av", "boulevard", "blvd", "road", "rd",
	"drive", "dr", "court", "ct", "lane", "ln", "way", "terrace", "ter",
	"place", "pl", "parkway", "pkwy", "highway", "hwy", "circle", "cir",
	"trail", "trl", "square", "sq", "alley", "aly", "plaza", "plz",
	"expressway", "expy", "freeway", "fwy", "loop", "pike", "row", "path",
	"crossing", "xing",
)

var directions = setOf(
	"n", "s", "e", "w", "ne", "nw", "se", "sw",
	"north", "south", "east", "west",
	"northeast", "northwest", "southeast", "southwest",
)

var shortDirections = setOf("n", "s", "e", "w", "ne", "nw", "se", "sw")

var occupancyTypes = setOf(
	"apt", "apartment", "unit", "suite", "ste", "fl", "floor", "rm", "room",
	"bldg", "building", "lot", "#",
)

var stateAbbreviations = setOf(
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA", "HI", "ID",
	"IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD", "MA", "MI", "MN", "MS",
	"MO", "MT", "NE", "NV", "NH", "NJ", "NM", "NY", "NC", "ND", "OH", "OK",
	"OR", "PA", "RI", "SC", "SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV",
	"WI", "WY", "DC", "PR",
)

var stateNames = setOf(
	"alabama", "alaska", "arizona", "arkansas", "california", "colorado",
	"connecticut", "delaware", "florida", "georgia", "hawaii", "idaho",
	"illinois", "indiana", "iowa", "kansas", "kentucky", "louisiana", "maine",
	"maryland", "massachusetts", "michigan", "minnesota", "mississippi",
	"missouri", "montana", "nebraska", "nevada", "new hampshire",
	"new jersey", "new mexico", "new york", "north carolina", "north dakota",
	"ohio", "oklahoma", "oregon", "pennsylvania", "rhode island",
	"south carolina", "south dakota", "tennessee", "texas", "utah", "vermont",
	"virginia", "washington", "west virginia", "wisconsin", "wyoming",
	"district of columbia", "puerto rico",
)

func setOf(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, item := range items {
		m[item] = true
	}

	return m
}

// Standardizer tags the tokens of an address and reassembles the recognized
// components in ComponentOrder.
type Standardizer struct{}

// NewStandardizer creates a standardizer.
func NewStandardizer() *Standardizer {
	return &Standardizer{}
}

// Standardize returns raw with its components in canonical order. Empty
// input yields "". Input that cannot be tagged unambiguously is returned
// trimmed but otherwise unchanged.
func (s *Standardizer) Standardize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parts, ok := Tag(raw)
	if !ok {
		return raw
	}

	out := make([]string, 0, len(ComponentOrder))
	for _, key := range ComponentOrder {
		if v := parts[key]; v != "" {
			out = append(out, v)
		}
	}

	return strings.Join(out, " ")
}

// Tag splits an address into components. ok is false when the address has a
// repeated component, such as a second house number.
func Tag(raw string) (map[string]string, bool) {
	tokens := tokenize(raw)
	parts := make(map[string]string, len(ComponentOrder))

	numIdx := -1
	for i, tok := range tokens {
		if numberPattern.MatchString(tok) && (i != len(tokens)-1 || !zipPattern.MatchString(tok)) {
			numIdx = i
			break
		}
	}

	rest := tokens
	if numIdx >= 0 {
		parts[AddressNumber] = tokens[numIdx]
		rest = tokens[numIdx+1:]
	}

	rest = tagTail(rest, parts, numIdx >= 0)

	if numIdx < 0 {
		return parts, tagPlace(rest, parts)
	}

	i := 0
	if len(rest) > 1 && directions[key(rest[0])] && !streetTypes[key(rest[1])] {
		parts[StreetNamePreDirectional] = rest[0]
		i++
	}

	var name []string
	for ; i < len(rest); i++ {
		k := key(rest[i])
		if isOccupancy(rest[i]) {
			break
		}

		if numberPattern.MatchString(rest[i]) {
			return parts, false
		}

		if streetTypes[k] && len(name) > 0 {
			parts[StreetNamePostType] = rest[i]
			i++

			// Post-directionals are not part of the output.
			if i < len(rest) && shortDirections[key(rest[i])] {
				i++
			}

			break
		}

		name = append(name, rest[i])
	}

	if len(name) > 0 {
		parts[StreetName] = strings.Join(name, " ")
	}

	if i < len(rest) && isOccupancy(rest[i]) {
		tok := rest[i]
		i++

		if strings.HasPrefix(tok, "#") && len(tok) > 1 {
			parts[OccupancyIdentifier] = tok
		} else {
			parts[OccupancyType] = tok
			if i < len(rest) {
				parts[OccupancyIdentifier] = rest[i]
				i++
			}
		}
	}

	return parts, tagPlace(rest[i:], parts)
}

// tagTail tags a trailing zip code and state and returns the tokens before
// them. Anything after the zip code is discarded.
func tagTail(tokens []string, parts map[string]string, hasNumber bool) []string {
	for i, tok := range tokens {
		if zipPattern.MatchString(tok) {
			parts[ZipCode] = tok
			tokens = tokens[:i]

			break
		}
	}

	for n := 3; n >= 1; n-- {
		if len(tokens) < n {
			continue
		}

		tail := tokens[len(tokens)-n:]
		joined := strings.Join(tail, " ")

		isState := stateNames[strings.ToLower(strings.TrimSuffix(joined, "."))]
		if n == 1 && stateAbbreviations[strings.TrimSuffix(joined, ".")] {
			isState = true
		}

		if !isState {
			continue
		}

		// A state abbreviation that doubles as a street type (CT, WAY) is
		// only a state once a street type has already been seen.
		if hasNumber && n == 1 && streetTypes[key(joined)] && !anyStreetType(tokens[:len(tokens)-1]) {
			continue
		}

		// Never consume the whole street.
		if hasNumber && len(tokens)-n == 0 {
			continue
		}

		parts[StateName] = joined

		return tokens[:len(tokens)-n]
	}

	return tokens
}

func tagPlace(tokens []string, parts map[string]string) bool {
	for _, tok := range tokens {
		if numberPattern.MatchString(tok) {
			return false
		}
	}

	if len(tokens) > 0 {
		parts[PlaceName] = strings.Join(tokens, " ")
	}

	return true
}

func anyStreetType(tokens []string) bool {
	for i, tok := range tokens {
		if i > 0 && streetTypes[key(tok)] {
			return true
		}
	}

	return false
}

func isOccupancy(tok string) bool {
	if strings.HasPrefix(tok, "#") {
		return true
	}

	return occupancyTypes[key(tok)]
}

// key normalizes a token for vocabulary lookups.
func key(tok string) string {
	return strings.ToLower(strings.ReplaceAll(tok, ".", ""))
}

// tokenize splits on whitespace and strips list punctuation.
func tokenize(raw string) []string {
	fields := strings.Fields(raw)
	tokens := make([]string, 0, len(fields))

	for _, f := range fields {
		f = strings.Trim(f, ",;")
		if f != "" {
			tokens = append(tokens, f)
		}
	}

	return tokens
}
