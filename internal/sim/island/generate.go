package island

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"strings"

	"naturalist.ai/internal/sim/grid"
)

type Config struct {
	Width    int
	Height   int
	Trees    int
	Animals  int
	Seed     int64
	Capacity int
}

var species = []string{
	"aardvark", "bison", "capybara", "dingo", "emu", "fennec", "gecko",
	"heron", "ibis", "jackal", "kiwi", "lemur", "marmot", "newt", "okapi",
	"puffin", "quokka", "raven", "skink", "tapir", "urial", "vole",
	"wombat", "xerus", "yak", "zebu",
}

func animalName(i int) string {
	return fmt.Sprintf("%s-%d", species[i%len(species)], i)
}

// speciesFor picks the species whose name starts with c.
func speciesFor(c byte, i int) string {
	for _, s := range species {
		if s[0] == c {
			return fmt.Sprintf("%s-%d", s, i)
		}
	}
	return fmt.Sprintf("%c-%d", c, i)
}

// Generate lays out a random island. The same config always produces the
// same island.
func Generate(cfg Config) (*Island, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("island: bad size %dx%d", cfg.Width, cfg.Height)
	}
	area := cfg.Width * cfg.Height
	if cfg.Trees < 0 || cfg.Trees >= area {
		return nil, fmt.Errorf("island: trees=%d does not fit %d tiles", cfg.Trees, area)
	}
	if cfg.Animals < 0 {
		return nil, fmt.Errorf("island: animals=%d", cfg.Animals)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	is := newIsland(cfg.Width, cfg.Height)
	is.capacity = cfg.Capacity

	order := rng.Perm(area)
	is.ship = is.tiles[order[0]]
	for _, i := range order[1 : 1+cfg.Trees] {
		is.tiles[i].tree = true
	}
	open := make([]*Tile, 0, area-cfg.Trees-1)
	for _, i := range order[1+cfg.Trees:] {
		open = append(open, is.tiles[i])
	}
	for i := 0; i < cfg.Animals && len(open) > 0; i++ {
		t := open[rng.Intn(len(open))]
		t.animals = append(t.animals, animalName(i))
	}
	is.at = is.ship
	return is, nil
}

// Parse reads an island drawn in ASCII: '.' open, '#' tree, 'S' ship and a
// lowercase letter for an animal. Rows must be the same width; blank lines
// are ignored.
func Parse(r io.Reader) (*Island, error) {
	var rows []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if line == "" {
			continue
		}
		if len(rows) > 0 && len(line) != len(rows[0]) {
			return nil, fmt.Errorf("island: row %d has width %d, want %d", len(rows)+1, len(line), len(rows[0]))
		}
		rows = append(rows, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("island: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("island: empty map")
	}

	is := newIsland(len(rows[0]), len(rows))
	animals := 0
	for y, row := range rows {
		for x := 0; x < len(row); x++ {
			t, _ := is.Tile(grid.Pos{X: x, Y: y})
			switch c := row[x]; {
			case c == '.':
			case c == '#':
				t.tree = true
			case c == 'S':
				if is.ship != nil {
					return nil, fmt.Errorf("island: second ship at %v", t.pos)
				}
				is.ship = t
			case c >= 'a' && c <= 'z':
				t.animals = append(t.animals, speciesFor(c, animals))
				animals++
			default:
				return nil, fmt.Errorf("island: unexpected %q at %v", c, t.pos)
			}
		}
	}
	if is.ship == nil {
		return nil, fmt.Errorf("island: no ship")
	}
	is.at = is.ship
	return is, nil
}
