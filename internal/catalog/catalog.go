// Package catalog loads the static reference tables — races, maps, regions,
// countries, and the inter-region ping-penalty cross-table — from JSON files
// once at startup. These tables are read-only for the lifetime of the
// process; there is no reload path, since this loader is a boundary
// collaborator rather than a live subsystem.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Race is one of the six closed race codes a player can select.
type Race struct {
	Code        string `json:"code"`
	Family      string `json:"family"`
	DisplayName string `json:"display_name"`
}

// MapDef is a playable map; only Active maps are eligible for assignment.
type MapDef struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Region is one of the 16 residential regions used for ping-penalty lookup.
type Region struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
}

// Country is an ISO-3166-1 alpha-2 entry, plus the XX/ZZ privacy sentinels.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type pingTableFile struct {
	Regions        []string                 `json:"regions"`
	PingPenaltyMs  map[string]map[string]int `json:"ping_penalty_ms"`
}

// Catalog is the immutable, in-memory handle to all reference tables.
type Catalog struct {
	races     map[string]Race
	raceOrder []string

	maps     map[string]MapDef
	mapOrder []string

	regions     map[string]Region
	regionOrder []string

	countries map[string]Country

	pingTable map[string]map[string]int
}

// Load reads every reference table from dir and returns a ready-to-use
// Catalog. Construction blocks until all files are loaded; a missing or
// malformed file is a fatal startup error.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{
		races:     make(map[string]Race),
		maps:      make(map[string]MapDef),
		regions:   make(map[string]Region),
		countries: make(map[string]Country),
		pingTable: make(map[string]map[string]int),
	}

	var races []Race
	if err := readJSON(filepath.Join(dir, "races.json"), &races); err != nil {
		return nil, fmt.Errorf("loading races: %w", err)
	}
	for _, r := range races {
		c.races[r.Code] = r
		c.raceOrder = append(c.raceOrder, r.Code)
	}

	var maps_ []MapDef
	if err := readJSON(filepath.Join(dir, "maps.json"), &maps_); err != nil {
		return nil, fmt.Errorf("loading maps: %w", err)
	}
	for _, m := range maps_ {
		c.maps[m.Name] = m
		c.mapOrder = append(c.mapOrder, m.Name)
	}

	var regions []Region
	if err := readJSON(filepath.Join(dir, "regions.json"), &regions); err != nil {
		return nil, fmt.Errorf("loading regions: %w", err)
	}
	for _, r := range regions {
		c.regions[r.Code] = r
		c.regionOrder = append(c.regionOrder, r.Code)
	}

	var countries []Country
	if err := readJSON(filepath.Join(dir, "countries.json"), &countries); err != nil {
		return nil, fmt.Errorf("loading countries: %w", err)
	}
	for _, co := range countries {
		c.countries[co.Code] = co
	}

	var pt pingTableFile
	if err := readJSON(filepath.Join(dir, "ping_table.json"), &pt); err != nil {
		return nil, fmt.Errorf("loading ping table: %w", err)
	}
	for a, row := range pt.PingPenaltyMs {
		c.pingTable[a] = make(map[string]int, len(row))
		for b, ms := range row {
			c.pingTable[a][b] = ms
		}
	}

	return c, nil
}

func readJSON(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	return dec.Decode(v)
}

// Races returns every race code in load order.
func (c *Catalog) Races() []Race {
	out := make([]Race, 0, len(c.raceOrder))
	for _, code := range c.raceOrder {
		out = append(out, c.races[code])
	}
	return out
}

// IsValidRace reports whether code is a known race.
func (c *Catalog) IsValidRace(code string) bool {
	_, ok := c.races[code]
	return ok
}

// ActiveMaps returns the names of every map currently in the active pool.
func (c *Catalog) ActiveMaps() []string {
	out := make([]string, 0, len(c.mapOrder))
	for _, name := range c.mapOrder {
		if c.maps[name].Active {
			out = append(out, name)
		}
	}
	return out
}

// IsValidRegion reports whether code is one of the 16 closed region codes.
func (c *Catalog) IsValidRegion(code string) bool {
	_, ok := c.regions[code]
	return ok
}

// IsValidCountry reports whether code is a known ISO2 code or a privacy
// sentinel (XX/ZZ).
func (c *Catalog) IsValidCountry(code string) bool {
	code = strings.ToUpper(code)
	_, ok := c.countries[code]
	return ok
}

// PingPenalty returns the expected inter-region latency penalty, in
// milliseconds, between two residential regions. Unknown pairs return 0 and
// false.
func (c *Catalog) PingPenalty(regionA, regionB string) (int, bool) {
	row, ok := c.pingTable[regionA]
	if !ok {
		return 0, false
	}
	ms, ok := row[regionB]
	return ms, ok
}
