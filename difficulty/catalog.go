package difficulty

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Budget bounds accepted by Profile.Validate.
const (
	MinTimeBudget = time.Millisecond
	MaxTimeBudget = 30 * time.Second
	MinDepth      = 1
	MaxDepth      = 20
)

// Level is a named skill level.
type Level int

const (
	Beginner Level = iota
	Intermediate
	Advanced
	Master
)

var levelNames = map[Level]string{
	Beginner:     "beginner",
	Intermediate: "intermediate",
	Advanced:     "advanced",
	Master:       "master",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel resolves a case-insensitive level label.
func ParseLevel(s string) (Level, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for l, name := range levelNames {
		if name == want {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// Profile is the search budget for one level. A zero Depth means the search
// is bounded by time only.
type Profile struct {
	Name        string
	Description string
	TimeBudget  time.Duration
	Depth       int
}

// Validate checks the budget ranges: 1ms to 30s of time and, if set, a depth
// between 1 and 20.
func (p Profile) Validate() error {
	if p.TimeBudget < MinTimeBudget || p.TimeBudget > MaxTimeBudget {
		return fmt.Errorf("%w: %s: time budget %s outside [%s, %s]", ErrInvalidProfile, p.Name, p.TimeBudget, MinTimeBudget, MaxTimeBudget)
	}
	if p.Depth != 0 && (p.Depth < MinDepth || p.Depth > MaxDepth) {
		return fmt.Errorf("%w: %s: depth %d outside [%d, %d]", ErrInvalidProfile, p.Name, p.Depth, MinDepth, MaxDepth)
	}
	return nil
}

func (p Profile) String() string {
	if p.Depth > 0 {
		return fmt.Sprintf("%s (%s, depth %d)", p.Name, p.TimeBudget, p.Depth)
	}
	return fmt.Sprintf("%s (%s)", p.Name, p.TimeBudget)
}

// DefaultProfiles is the built-in level table.
var DefaultProfiles = map[Level]Profile{
	Beginner:     {Name: "beginner", Description: "Easy opponent, good for learning", TimeBudget: 150 * time.Millisecond, Depth: 2},
	Intermediate: {Name: "intermediate", Description: "Moderate challenge", TimeBudget: 500 * time.Millisecond, Depth: 4},
	Advanced:     {Name: "advanced", Description: "Strong opponent", TimeBudget: 1500 * time.Millisecond, Depth: 6},
	Master:       {Name: "master", Description: "Very strong opponent", TimeBudget: 5 * time.Second, Depth: 10},
}

// Catalog is an immutable set of profiles keyed by level.
type Catalog struct {
	profiles map[Level]Profile
}

// NewCatalog validates and copies profiles into a new catalog.
func NewCatalog(profiles map[Level]Profile) (*Catalog, error) {
	c := &Catalog{profiles: make(map[Level]Profile, len(profiles))}
	for l, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		c.profiles[l] = p
	}
	return c, nil
}

// Default returns a catalog holding DefaultProfiles.
func Default() *Catalog {
	c, err := NewCatalog(DefaultProfiles)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the profile for l.
func (c *Catalog) Lookup(l Level) (Profile, error) {
	p, ok := c.profiles[l]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownLevel, l)
	}
	return p, nil
}

// LookupName resolves a label and returns its profile.
func (c *Catalog) LookupName(label string) (Profile, error) {
	l, err := ParseLevel(label)
	if err != nil {
		return Profile{}, err
	}
	return c.Lookup(l)
}

// Levels returns the catalog's levels in ascending order.
func (c *Catalog) Levels() []Level {
	levels := make([]Level, 0, len(c.profiles))
	for l := range c.profiles {
		levels = append(levels, l)
	}
	slices.Sort(levels)
	return levels
}

// With returns a copy of the catalog where l maps to p.
func (c *Catalog) With(l Level, p Profile) (*Catalog, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	next := make(map[Level]Profile, len(c.profiles)+1)
	for k, v := range c.profiles {
		next[k] = v
	}
	next[l] = p
	return &Catalog{profiles: next}, nil
}
