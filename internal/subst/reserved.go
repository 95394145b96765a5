package subst

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// fixtureMajor is the reserved table format this package understands.
const fixtureMajor = "v1"

//go:embed fixtures/reserved.yaml
var reservedYAML []byte

type fixtureFile struct {
	Version string         `yaml:"version"`
	Seeds   []fixtureEntry `yaml:"seeds"`
}

type fixtureEntry struct {
	Seed      int64             `yaml:"seed"`
	Images    string            `yaml:"images"`
	Overrides []fixtureOverride `yaml:"overrides"`
}

type fixtureOverride struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

var (
	reservedTables  map[int64]Permutation
	reservedVersion string
)

func init() {
	tables, version, err := parseFixtures(reservedYAML)
	if err != nil {
		panic("subst: reserved fixtures: " + err.Error())
	}
	reservedTables = tables
	reservedVersion = version
}

func parseFixtures(data []byte) (map[int64]Permutation, string, error) {
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, "", fmt.Errorf("parse fixtures: %w", err)
	}
	if !semver.IsValid(file.Version) {
		return nil, "", fmt.Errorf("invalid fixture version %q", file.Version)
	}
	if semver.Major(file.Version) != fixtureMajor {
		return nil, "", fmt.Errorf("unsupported fixture version %s (want %s.x)", file.Version, fixtureMajor)
	}

	tables := make(map[int64]Permutation, len(file.Seeds))
	for _, entry := range file.Seeds {
		if _, dup := tables[entry.Seed]; dup {
			return nil, "", fmt.Errorf("seed %d listed twice", entry.Seed)
		}
		images := strings.ToUpper(strings.TrimSpace(entry.Images))
		if len(images) != alphabetSize {
			return nil, "", fmt.Errorf("seed %d: want %d images, got %d", entry.Seed, alphabetSize, len(images))
		}
		var p Permutation
		copy(p[:], images)
		for _, o := range entry.Overrides {
			from, to := strings.ToUpper(o.From), strings.ToUpper(o.To)
			if len(from) != 1 || len(to) != 1 {
				return nil, "", fmt.Errorf("seed %d: override %q->%q must be single letters", entry.Seed, o.From, o.To)
			}
			p = p.With(from[0], to[0])
		}
		if err := p.Validate(); err != nil {
			return nil, "", fmt.Errorf("seed %d: %w", entry.Seed, err)
		}
		tables[entry.Seed] = p
	}
	return tables, file.Version, nil
}

// Reserved returns the fixed permutation for a reserved seed. The second
// result is false for every seed that should go through Generate.
func Reserved(seed int64) (Permutation, bool) {
	p, ok := reservedTables[seed]
	return p, ok
}

// IsReserved reports whether seed has a fixed table.
func IsReserved(seed int64) bool {
	_, ok := reservedTables[seed]
	return ok
}

// ReservedSeeds lists the reserved seeds in ascending order.
func ReservedSeeds() []int64 {
	seeds := make([]int64, 0, len(reservedTables))
	for s := range reservedTables {
		seeds = append(seeds, s)
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i] < seeds[j] })
	return seeds
}

// FixtureVersion returns the version string of the embedded reserved tables.
func FixtureVersion() string {
	return reservedVersion
}

// PermutationFor resolves seed through the reserved tables first and the
// generator otherwise.
func PermutationFor(seed int64) (Permutation, bool) {
	if p, ok := Reserved(seed); ok {
		return p, true
	}
	return Generate(seed), false
}
