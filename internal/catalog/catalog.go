// Package catalog loads the world catalog: registered ports, the mission
// board and the vessels seeded into empty spaces.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/OCAP2/helmsync/internal/geo"
	"github.com/OCAP2/helmsync/internal/util"
	"github.com/OCAP2/helmsync/pkg/core"
	"gopkg.in/yaml.v3"
)

// DefaultPortRadius is used for ports that do not set a radius.
const DefaultPortRadius = 400

// VesselSpec seeds a vessel into a space that has no persisted vessels.
type VesselSpec struct {
	ID      string    `yaml:"id"`
	Space   string    `yaml:"space"`
	Name    string    `yaml:"name"`
	Owner   string    `yaml:"owner"`
	Crew    []string  `yaml:"crew,omitempty"`
	Lat     float64   `yaml:"lat"`
	Lon     float64   `yaml:"lon"`
	Heading float64   `yaml:"heading"` // degrees
	Hull    core.Hull `yaml:"hull,omitempty"`
}

// Catalog is the parsed world file.
type Catalog struct {
	Ports    []core.Port    `yaml:"ports"`
	Missions []core.Mission `yaml:"missions"`
	Vessels  []VesselSpec   `yaml:"vessels,omitempty"`

	missions map[string]core.Mission
}

// Load reads path. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		c := defaults()
		c.normalize()
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes and validates a catalog document.
func Parse(b []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return c, nil
}

func (c *Catalog) normalize() {
	for i := range c.Ports {
		if c.Ports[i].Radius <= 0 {
			c.Ports[i].Radius = DefaultPortRadius
		}
	}
	sort.Slice(c.Ports, func(i, j int) bool { return c.Ports[i].ID < c.Ports[j].ID })
	c.missions = make(map[string]core.Mission, len(c.Missions))
	for _, m := range c.Missions {
		c.missions[m.ID] = m
	}
}

// Validate checks ids are unique and coordinates are on the globe.
func (c *Catalog) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for _, p := range c.Ports {
		if p.ID == "" || seen["port:"+p.ID] {
			errs = append(errs, fmt.Errorf("port %q: missing or duplicate id", p.ID))
		}
		seen["port:"+p.ID] = true
		if !onGlobe(p.Lat, p.Lon) {
			errs = append(errs, fmt.Errorf("port %q: coordinates out of range", p.ID))
		}
	}
	for _, m := range c.Missions {
		if m.ID == "" || seen["mission:"+m.ID] {
			errs = append(errs, fmt.Errorf("mission %q: missing or duplicate id", m.ID))
		}
		seen["mission:"+m.ID] = true
		if !onGlobe(m.OriginLat, m.OriginLon) || !onGlobe(m.DestinationLat, m.DestinationLon) {
			errs = append(errs, fmt.Errorf("mission %q: coordinates out of range", m.ID))
		}
		if m.RewardCredits < 0 || m.RewardExperience < 0 {
			errs = append(errs, fmt.Errorf("mission %q: negative reward", m.ID))
		}
	}
	for _, v := range c.Vessels {
		if v.ID == "" || v.Space == "" || seen["vessel:"+v.ID] {
			errs = append(errs, fmt.Errorf("vessel %q: missing id/space or duplicate id", v.ID))
		}
		seen["vessel:"+v.ID] = true
		if !onGlobe(v.Lat, v.Lon) {
			errs = append(errs, fmt.Errorf("vessel %q: coordinates out of range", v.ID))
		}
	}
	return errors.Join(errs...)
}

func onGlobe(lat, lon float64) bool {
	return lat >= -85.05 && lat <= 85.05 && lon >= -180 && lon <= 180
}

// Mission returns the mission with id.
func (c *Catalog) Mission(id string) (core.Mission, bool) {
	m, ok := c.missions[id]
	return m, ok
}

// PortAt returns the port whose radius contains pos.
func (c *Catalog) PortAt(pos core.Position) (core.Port, bool) {
	return geo.NearestPort(c.Ports, pos)
}

// SeedVessels builds the configured vessels of space.
func (c *Catalog) SeedVessels(space string) []core.Vessel {
	var out []core.Vessel
	for _, seed := range c.Vessels {
		if seed.Space != space {
			continue
		}
		v := core.NewVessel(seed.ID, seed.Space, seed.Owner)
		v.Name = seed.Name
		for _, uid := range seed.Crew {
			v.AddCrew(uid)
		}
		v.Position = geo.FromGeodetic(seed.Lat, seed.Lon, 0)
		v.Orientation.Heading = util.WrapAngle(util.Radians(seed.Heading))
		if seed.Hull.Mass > 0 {
			v.Hull = seed.Hull
		}
		out = append(out, *v)
	}
	return out
}

// Spaces returns the distinct spaces named by seeded vessels.
func (c *Catalog) Spaces() []string {
	set := map[string]bool{}
	for _, v := range c.Vessels {
		set[v.Space] = true
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func defaults() *Catalog {
	return &Catalog{
		Ports: []core.Port{
			{ID: "oslo", Name: "Oslo", Lat: 59.9045, Lon: 10.7390, Radius: 600},
			{ID: "drobak", Name: "Drøbak", Lat: 59.6605, Lon: 10.6290, Radius: 350},
			{ID: "horten", Name: "Horten", Lat: 59.4170, Lon: 10.4850, Radius: 450},
		},
		Missions: []core.Mission{
			{ID: "oslo-drobak", Name: "Timber to Drøbak", OriginLat: 59.9045, OriginLon: 10.7390, DestinationLat: 59.6605, DestinationLon: 10.6290, RewardCredits: 250, RewardExperience: 400},
			{ID: "drobak-horten", Name: "Fish to Horten", OriginLat: 59.6605, OriginLon: 10.6290, DestinationLat: 59.4170, DestinationLon: 10.4850, RewardCredits: 320, RewardExperience: 550},
			{ID: "horten-oslo", Name: "Machinery to Oslo", OriginLat: 59.4170, OriginLon: 10.4850, DestinationLat: 59.9045, DestinationLon: 10.7390, RewardCredits: 600, RewardExperience: 900, MinRank: 2},
		},
		Vessels: []VesselSpec{
			{ID: "oslofjord-1", Space: "oslofjord", Name: "Nordlys", Lat: 59.9030, Lon: 10.7380, Heading: 180},
			{ID: "oslofjord-2", Space: "oslofjord", Name: "Kystvakt", Lat: 59.6600, Lon: 10.6280, Heading: 0},
		},
	}
}
