package collect

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mesh-intelligence/freshset/internal/imageproc"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// DefaultPerState is the number of samples per produce per state.
const DefaultPerState = 10

// Indexer registers written samples in batches. *sqlite.Backend satisfies
// it.
type Indexer interface {
	AddImages(entries []*types.ImageEntry) error
}

// Generator writes synthetic placeholder samples.
type Generator struct {
	Root     string
	PerState int
	Index    Indexer // optional
	Logger   *slog.Logger
	Now      func() time.Time
}

// CreateDirs creates <root>/<state>/<produce> for every produce.
func CreateDirs(root string, produce []Produce) error {
	for _, state := range types.States {
		for _, p := range produce {
			if err := os.MkdirAll(filepath.Join(root, state, p.Name), 0o755); err != nil {
				return err
			}
		}
	}
	return nil
}

// Generate writes PerState fresh and PerState rotten samples for every
// produce and returns the catalog entries of the written files.
func (g *Generator) Generate(produce []Produce) ([]*types.ImageEntry, error) {
	logger := g.logger()
	perState := g.PerState
	if perState <= 0 {
		perState = DefaultPerState
	}
	if err := CreateDirs(g.Root, produce); err != nil {
		return nil, err
	}
	date := g.now().Format(time.DateOnly)
	sum := imageproc.SHA256Hex([]byte(imageproc.PlaceholderDataURL))

	var entries []*types.ImageEntry
	for _, p := range produce {
		logger.Debug("generating samples", "produce", p.Name)
		for _, state := range types.States {
			for i := 0; i < perState; i++ {
				rec := GeneratedRecord(p, state, i, date)
				path := RecordPath(g.Root, p.Name, state, i)
				if err := WriteRecord(path, rec); err != nil {
					return entries, err
				}
				entry := &types.ImageEntry{
					Produce: p.Name, State: state, Path: path,
					Source: SourceGenerated, SHA256: sum,
				}
				entries = append(entries, entry)
			}
		}
	}
	if err := register(g.Index, entries); err != nil {
		return entries, err
	}
	logger.Info("generated samples", "produce", len(produce), "samples", len(entries))
	return entries, nil
}

// GeneratedRecord builds the placeholder record for sample i.
func GeneratedRecord(p Produce, state string, i int, date string) *types.Record {
	c := DescribedCharacteristics(p.Name, state)
	score := 15 + i%20
	if state == types.StateFresh {
		score = 85 + i%10
	}
	return &types.Record{
		Produce:         p.Name,
		State:           state,
		Index:           i,
		ImageBase64:     imageproc.PlaceholderDataURL,
		Characteristics: c,
		FreshnessScore:  score,
		Confidence:      90 + i%10,
		Recommendation:  types.RecommendationFor(state),
		Details:         generatedDetails(p.Name, state, c),
		Metadata: types.RecordMetadata{
			CollectionDate:  date,
			Source:          SourceGenerated,
			QualityVerified: true,
			Region:          p.Region,
		},
	}
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func register(idx Indexer, entries []*types.ImageEntry) error {
	if idx == nil || len(entries) == 0 {
		return nil
	}
	return idx.AddImages(entries)
}
