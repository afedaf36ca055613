package race

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

type nameSet map[string]struct{}

func newNameSet(names ...string) nameSet {
	s := make(nameSet, len(names))
	s.add(names...)
	return s
}

func (s nameSet) add(names ...string) {
	for _, n := range names {
		if n = NormalizeName(n); n != "" {
			s[n] = struct{}{}
		}
	}
}

func (s nameSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s nameSet) sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// noiseNames are worker and supply names excluded from strategic items for
// every race.
var noiseNames = []string{
	"probe", "scv", "drone", "mule",
	"pylon", "supplydepot", "supplydepotlowered", "overlord",
}

// expansionNames are base structures. They are counted separately for the
// expansion penalty and never appear as strategic items.
var expansionNames = []string{"nexus", "commandcenter", "hatchery"}

// keyTimingNames are buildings whose first-seen time is recorded in a
// signature regardless of the early-game threshold.
var keyTimingNames = []string{
	"gateway", "cyberneticscore", "forge", "twilightcouncil", "stargate",
	"roboticsfacility", "darkshrine", "templararchives", "nexus",
	"barracks", "factory", "starport", "engineeringbay", "armory", "commandcenter",
	"spawningpool", "roachwarren", "banelingnest", "lair", "hydraliskden",
	"spire", "evolutionchamber", "hatchery",
}

type vocabularyData struct {
	units, buildings, upgrades []string
	tech, critical, aliases    []string
}

var builtinVocabularies = map[Race]vocabularyData{
	Protoss: {
		units: []string{
			"probe", "zealot", "stalker", "sentry", "adept", "hightemplar",
			"darktemplar", "archon", "observer", "warpprism", "immortal",
			"colossus", "disruptor", "phoenix", "voidray", "oracle", "tempest",
			"carrier", "mothership",
		},
		buildings: []string{
			"nexus", "pylon", "gateway", "warpgate", "assimilator",
			"cyberneticscore", "forge", "photoncannon", "shieldbattery",
			"twilightcouncil", "roboticsfacility", "stargate", "templararchives",
			"darkshrine", "roboticsbay", "fleetbeacon",
		},
		upgrades: []string{
			"warpgateresearch", "blink", "charge", "resonatingglaives",
			"psionicstorm", "shadowstride", "extendedthermallance",
			"graviticboosters", "graviticdrive", "fluxvanes",
			"protossgroundweaponslevel1", "protossgroundarmorslevel1",
			"protossshieldslevel1", "protossairweaponslevel1",
		},
		tech: []string{
			"cyberneticscore", "forge", "twilightcouncil", "roboticsfacility",
			"stargate", "templararchives", "darkshrine", "roboticsbay", "fleetbeacon",
		},
		critical: []string{
			"stargate", "roboticsfacility", "twilightcouncil", "darkshrine", "templararchives",
		},
		aliases: []string{
			"protoss", "toss", "cannon", "cannons", "gate", "gates", "chargelot",
			"chargelots", "zealots", "stalkers", "blinkstalkers", "dts", "skytoss",
		},
	},
	Terran: {
		units: []string{
			"scv", "mule", "marine", "marauder", "reaper", "ghost", "hellion",
			"hellbat", "widowmine", "siegetank", "cyclone", "thor", "viking",
			"medivac", "liberator", "raven", "banshee", "battlecruiser",
		},
		buildings: []string{
			"commandcenter", "orbitalcommand", "planetaryfortress", "supplydepot",
			"refinery", "barracks", "engineeringbay", "bunker", "missileturret",
			"sensortower", "factory", "ghostacademy", "armory", "starport",
			"fusioncore", "barracksreactor", "barrackstechlab", "factoryreactor",
			"factorytechlab", "starportreactor", "starporttechlab",
		},
		upgrades: []string{
			"stimpack", "combatshield", "concussiveshells", "infernalpreigniter",
			"cloakingfield", "drillingclaws", "hisecautotracking",
			"terraninfantryweaponslevel1", "terraninfantryarmorslevel1",
			"terranvehicleweaponslevel1", "terranshipweaponslevel1",
		},
		tech: []string{
			"engineeringbay", "factory", "starport", "ghostacademy", "armory", "fusioncore",
		},
		critical: []string{
			"factory", "starport", "ghostacademy", "fusioncore",
		},
		aliases: []string{
			"terran", "rax", "marines", "marauders", "tank", "tanks", "bio",
			"mech", "bc", "bcs", "banshees", "hellions", "proxyrax",
		},
	},
	Zerg: {
		units: []string{
			"drone", "overlord", "zergling", "queen", "baneling", "roach",
			"ravager", "hydralisk", "lurker", "mutalisk", "corruptor",
			"broodlord", "infestor", "swarmhost", "viper", "ultralisk", "overseer",
		},
		buildings: []string{
			"hatchery", "lair", "hive", "extractor", "spawningpool",
			"evolutionchamber", "spinecrawler", "sporecrawler", "roachwarren",
			"banelingnest", "hydraliskden", "lurkerden", "infestationpit",
			"spire", "greaterspire", "nydusnetwork", "nydusworm", "ultraliskcavern",
		},
		upgrades: []string{
			"metabolicboost", "centrifugalhooks", "glialreconstitution",
			"tunnelingclaws", "groovedspines", "muscularaugments", "burrow",
			"pneumatizedcarapace", "adrenalglands", "zergmissileweaponslevel1",
			"zergmeleeweaponslevel1", "zerggroundarmorslevel1", "zergflyerweaponslevel1",
		},
		tech: []string{
			"spawningpool", "roachwarren", "banelingnest", "lair", "hydraliskden",
			"lurkerden", "spire", "infestationpit", "hive", "nydusnetwork",
			"ultraliskcavern", "evolutionchamber",
		},
		critical: []string{
			"roachwarren", "banelingnest", "hydraliskden", "lurkerden", "spire", "nydusnetwork",
		},
		aliases: []string{
			"zerg", "ling", "lings", "zerglings", "bane", "banes", "roaches",
			"muta", "mutas", "hydra", "hydras", "pool", "nydus", "ravagers",
		},
	},
}

// Vocabulary is the static set of names known for one race.
type Vocabulary struct {
	race     Race
	names    nameSet
	tech     nameSet
	critical nameSet
	aliases  nameSet
}

// Race returns the race this vocabulary describes.
func (v *Vocabulary) Race() Race { return v.race }

// Contains reports whether the normalized name is a unit, building or
// upgrade of this race.
func (v *Vocabulary) Contains(name string) bool { return v.names.has(name) }

// IsTech reports whether the name is a tech-path structure that carries the
// weight bonus during scoring.
func (v *Vocabulary) IsTech(name string) bool { return v.tech.has(name) }

// IsCritical reports whether the name is a strategy-defining structure.
func (v *Vocabulary) IsCritical(name string) bool { return v.critical.has(name) }

// Recognizes reports whether an identifier (a name or a free-text keyword)
// points at this race.
func (v *Vocabulary) Recognizes(identifier string) bool {
	return v.names.has(identifier) || v.aliases.has(identifier)
}

// CriticalTech returns the critical structures in sorted order.
func (v *Vocabulary) CriticalTech() []string { return v.critical.sorted() }

// Catalog holds one vocabulary per playable race. A Catalog is immutable
// after construction and safe for concurrent use.
type Catalog struct {
	vocabularies map[Race]*Vocabulary
	noise        nameSet
	expansions   nameSet
	keyTimings   nameSet
}

// NewCatalog builds a catalog from the built-in vocabularies.
func NewCatalog() *Catalog {
	c := &Catalog{
		vocabularies: make(map[Race]*Vocabulary, len(builtinVocabularies)),
		noise:        newNameSet(noiseNames...),
		expansions:   newNameSet(expansionNames...),
		keyTimings:   newNameSet(keyTimingNames...),
	}
	for r, data := range builtinVocabularies {
		v := &Vocabulary{
			race:     r,
			names:    newNameSet(data.units...),
			tech:     newNameSet(data.tech...),
			critical: newNameSet(data.critical...),
			aliases:  newNameSet(data.aliases...),
		}
		v.names.add(data.buildings...)
		v.names.add(data.upgrades...)
		c.vocabularies[r] = v
	}
	return c
}

// Lookup returns the vocabulary for r. The second result is false for
// Unknown or unrecognized labels.
func (c *Catalog) Lookup(r Race) (*Vocabulary, bool) {
	v, ok := c.vocabularies[r]
	return v, ok
}

// IsNoise reports whether the normalized name is a worker or supply unit.
func (c *Catalog) IsNoise(name string) bool { return c.noise.has(name) }

// IsExpansion reports whether the normalized name is a base structure.
func (c *Catalog) IsExpansion(name string) bool { return c.expansions.has(name) }

// IsKeyTiming reports whether the first-seen time of the normalized name is
// tracked in signatures.
func (c *Catalog) IsKeyTiming(name string) bool { return c.keyTimings.has(name) }

// overrideSection is one race table of a vocabulary override file.
type overrideSection struct {
	Units     []string `toml:"units"`
	Buildings []string `toml:"buildings"`
	Upgrades  []string `toml:"upgrades"`
	Tech      []string `toml:"tech"`
	Critical  []string `toml:"critical"`
	Aliases   []string `toml:"aliases"`
}

// LoadCatalog builds the built-in catalog and merges additional names from
// a TOML override file. A missing file, or an empty path, yields the
// built-in catalog. Override tables are keyed by race:
//
//	[zerg]
//	units = ["brood lord"]
//	critical = ["infestation pit"]
func LoadCatalog(path string) (*Catalog, error) {
	c := NewCatalog()
	if path == "" {
		return c, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("stat vocabulary overrides: %w", err)
	}

	var sections map[string]overrideSection
	if _, err := toml.DecodeFile(path, &sections); err != nil {
		return nil, fmt.Errorf("decode vocabulary overrides %s: %w", path, err)
	}

	for label, sec := range sections {
		r := Parse(label)
		v, ok := c.vocabularies[r]
		if !ok {
			return nil, fmt.Errorf("%w: %q in %s", ErrUnknownRace, label, path)
		}
		v.names.add(sec.Units...)
		v.names.add(sec.Buildings...)
		v.names.add(sec.Upgrades...)
		// Tech and critical names are always vocabulary members too.
		v.names.add(sec.Tech...)
		v.names.add(sec.Critical...)
		v.tech.add(sec.Tech...)
		v.critical.add(sec.Critical...)
		v.aliases.add(sec.Aliases...)
	}
	return c, nil
}
