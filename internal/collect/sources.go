package collect

import (
	"fmt"
	"net/url"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/freshset/pkg/types"
)

// StateURLs lists image URLs for one produce.
type StateURLs struct {
	Fresh  []string `yaml:"fresh"`
	Rotten []string `yaml:"rotten"`
}

// For returns the URLs for a state.
func (s StateURLs) For(state string) []string {
	if state == types.StateFresh {
		return s.Fresh
	}
	return s.Rotten
}

// Sources maps produce names to image URLs. It is read from a YAML file
// shaped like:
//
//	produce:
//	  apple:
//	    fresh: [https://...]
//	    rotten: [https://...]
type Sources struct {
	Produce map[string]StateURLs `yaml:"produce"`
}

// LoadSources reads a YAML sources file.
func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sources: %w", err)
	}
	var s Sources
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing sources %s: %w", path, err)
	}
	if s.Produce == nil {
		s.Produce = make(map[string]StateURLs)
	}
	return &s, nil
}

// Save writes the sources as YAML.
func (s *Sources) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding sources: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// URLs returns the URLs for a produce and state. Produce without entries
// get one generated placeholder URL per state.
func (s *Sources) URLs(produce, state string) []string {
	if s != nil {
		if u, ok := s.Produce[produce]; ok {
			return u.For(state)
		}
	}
	return []string{placeholderURL(produce, state)}
}

// ProduceNames returns the produce listed in the file, sorted.
func (s *Sources) ProduceNames() []string {
	names := make([]string, 0, len(s.Produce))
	for n := range s.Produce {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func placeholderURL(produce, state string) string {
	bg := "00FF00"
	if state == types.StateRotten {
		bg = "8B4513"
	}
	label := types.DisplayName(state) + " " + types.DisplayName(produce)
	return fmt.Sprintf("https://via.placeholder.com/300x300/%s/FFFFFF?text=%s", bg, url.QueryEscape(label))
}

// DefaultSources returns the built-in URL list.
func DefaultSources() *Sources {
	rotten := func(name string) []string {
		return []string{
			"https://via.placeholder.com/300x300/8B4513/FFFFFF?text=Rotten+" + name + "+1",
			"https://via.placeholder.com/300x300/654321/FFFFFF?text=Rotten+" + name + "+2",
			"https://via.placeholder.com/300x300/8B4513/FFFFFF?text=Rotten+" + name + "+3",
		}
	}
	return &Sources{Produce: map[string]StateURLs{
		"apple": {
			Fresh: []string{
				"https://images.unsplash.com/photo-1619546813926-a78fa6372cd2?w=300",
				"https://images.unsplash.com/photo-1560806887-1e4cd0b6cbd6?w=300",
				"https://images.unsplash.com/photo-1589217832222-c23b8a3d5a90?w=300",
			},
			Rotten: rotten("Apple"),
		},
		"banana": {
			Fresh: []string{
				"https://images.unsplash.com/photo-1603833665858-e61d17a86224?w=300",
				"https://images.unsplash.com/photo-1571771894821-ce9b6c11b08e?w=300",
				"https://images.unsplash.com/photo-1528825871115-3581a5387919?w=300",
			},
			Rotten: rotten("Banana"),
		},
		"orange": {
			Fresh: []string{
				"https://images.unsplash.com/photo-1547036967-23d11aacaee0?w=300",
				"https://images.unsplash.com/photo-1482012110084-a45c04f45e90?w=300",
				"https://images.unsplash.com/photo-1497486751825-1233686d5d80?w=300",
			},
			Rotten: rotten("Orange"),
		},
		"tomato": {
			Fresh: []string{
				"https://images.unsplash.com/photo-1582284540020-8acbe03f4924?w=300",
				"https://images.unsplash.com/photo-1561136594-7f68413e5a2a?w=300",
				"https://images.unsplash.com/photo-1506471883661-ed75e40eb5c0?w=300",
			},
			Rotten: rotten("Tomato"),
		},
	}}
}
