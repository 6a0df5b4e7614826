package tiger

// stateFIPS maps state FIPS codes to (abbreviation, full name). Covers the
// 50 states, DC, and the territories — 56 entries, matching the States layer
// of the reference dataset.
var stateFIPS = map[string]struct{ Abbr, Full string }{
	"01": {"AL", "Alabama"},
	"02": {"AK", "Alaska"},
	"04": {"AZ", "Arizona"},
	"05": {"AR", "Arkansas"},
	"06": {"CA", "California"},
	"08": {"CO", "Colorado"},
	"09": {"CT", "Connecticut"},
	"10": {"DE", "Delaware"},
	"11": {"DC", "District of Columbia"},
	"12": {"FL", "Florida"},
	"13": {"GA", "Georgia"},
	"15": {"HI", "Hawaii"},
	"16": {"ID", "Idaho"},
	"17": {"IL", "Illinois"},
	"18": {"IN", "Indiana"},
	"19": {"IA", "Iowa"},
	"20": {"KS", "Kansas"},
	"21": {"KY", "Kentucky"},
	"22": {"LA", "Louisiana"},
	"23": {"ME", "Maine"},
	"24": {"MD", "Maryland"},
	"25": {"MA", "Massachusetts"},
	"26": {"MI", "Michigan"},
	"27": {"MN", "Minnesota"},
	"28": {"MS", "Mississippi"},
	"29": {"MO", "Missouri"},
	"30": {"MT", "Montana"},
	"31": {"NE", "Nebraska"},
	"32": {"NV", "Nevada"},
	"33": {"NH", "New Hampshire"},
	"34": {"NJ", "New Jersey"},
	"35": {"NM", "New Mexico"},
	"36": {"NY", "New York"},
	"37": {"NC", "North Carolina"},
	"38": {"ND", "North Dakota"},
	"39": {"OH", "Ohio"},
	"40": {"OK", "Oklahoma"},
	"41": {"OR", "Oregon"},
	"42": {"PA", "Pennsylvania"},
	"44": {"RI", "Rhode Island"},
	"45": {"SC", "South Carolina"},
	"46": {"SD", "South Dakota"},
	"47": {"TN", "Tennessee"},
	"48": {"TX", "Texas"},
	"49": {"UT", "Utah"},
	"50": {"VT", "Vermont"},
	"51": {"VA", "Virginia"},
	"53": {"WA", "Washington"},
	"54": {"WV", "West Virginia"},
	"55": {"WI", "Wisconsin"},
	"56": {"WY", "Wyoming"},
	"60": {"AS", "American Samoa"},
	"66": {"GU", "Guam"},
	"69": {"MP", "Northern Mariana Islands"},
	"72": {"PR", "Puerto Rico"},
	"78": {"VI", "U.S. Virgin Islands"},
}

// AbbrToFull maps state postal abbreviations to full names. Used as the
// matcher's abbreviation expansion table.
func AbbrToFull() map[string]string {
	m := make(map[string]string, len(stateFIPS))
	for _, s := range stateFIPS {
		m[s.Abbr] = s.Full
	}
	return m
}

// FIPSToFull returns the full state name for a FIPS code, or "".
func FIPSToFull(fips string) string {
	return stateFIPS[fips].Full
}

// featureAttributeMap renames the map service's attribute names to the
// geography level names the statistics API understands.
var featureAttributeMap = map[string]string{
	"REGION":   "region",
	"DIVISION": "division",
	"STATE":    "state",
	"COUNTY":   "county",
	"COUSUB":   "county subdivision",
	"TRACT":    "tract",
	"BLKGRP":   "block group",
	"BLOCK":    "block",
	"PLACE":    "place",
	"CBSA":     "metropolitan statistical area/micropolitan statistical area",
	"CSA":      "combined statistical area",
	"CD":       "congressional district",
	"SLDU":     "state legislative district (upper chamber)",
	"SLDL":     "state legislative district (lower chamber)",
	"VTD":      "voting district",
	"ZCTA5":    "zip code tabulation area",
}

// RenameAttributes maps raw service attribute keys to their geography level
// names, leaving unknown keys alone. The input map is not modified.
func RenameAttributes(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for key, value := range props {
		if renamed, ok := featureAttributeMap[key]; ok {
			key = renamed
		}
		out[key] = value
	}
	return out
}

// layerLevelMap links a layer name to the geography level its features pin
// when building statistics-API parameters from a resolved area.
var layerLevelMap = map[string]string{
	"Census Regions":                   "region",
	"Census Divisions":                 "division",
	"States":                           "state",
	"Counties":                         "county",
	"County Subdivisions":              "county subdivision",
	"Census Tracts":                    "tract",
	"Census Block Groups":              "block group",
	"Census Blocks":                    "block",
	"Incorporated Places":              "place",
	"Census Designated Places":         "place",
	"Metropolitan Statistical Areas":   "metropolitan statistical area/micropolitan statistical area",
	"Micropolitan Statistical Areas":   "metropolitan statistical area/micropolitan statistical area",
	"Combined Statistical Areas":       "combined statistical area",
	"Congressional Districts":          "congressional district",
	"Census ZIP Code Tabulation Areas": "zip code tabulation area",
}

// LayerLevel returns the geography level pinned by the named layer, or "".
func LayerLevel(layerName string) string {
	return layerLevelMap[layerName]
}

// defaultLayerPageSizes shrinks the page window for layers whose geometries
// are too heavy for the global default.
var defaultLayerPageSizes = map[string]int{
	"Census Tracts":                    50,
	"Census Block Groups":              50,
	"Census Blocks":                    20,
	"County Subdivisions":              50,
	"Census ZIP Code Tabulation Areas": 20,
}

// DefaultLayerPageSizes returns a copy of the per-layer page size overrides.
func DefaultLayerPageSizes() map[string]int {
	m := make(map[string]int, len(defaultLayerPageSizes))
	for k, v := range defaultLayerPageSizes {
		m[k] = v
	}
	return m
}
