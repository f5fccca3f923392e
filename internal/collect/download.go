package collect

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/mesh-intelligence/freshset/internal/imageproc"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// DefaultDelay is the pause between two downloads.
const DefaultDelay = 500 * time.Millisecond

// Getter downloads a URL. *fetch.Fetcher satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Collector downloads real images and writes them as samples.
type Collector struct {
	Root    string
	Target  int           // samples per produce per state
	Delay   time.Duration // zero uses DefaultDelay, negative disables the pause
	Quality int
	Sources *Sources
	Fetch   Getter
	Index   Indexer // optional
	Logger  *slog.Logger
	Rand    *rand.Rand
	Now     func() time.Time
}

// Collect downloads images for every produce. Failed downloads and
// undecodable images are logged and skipped. It stops early only when ctx
// is cancelled.
func (c *Collector) Collect(ctx context.Context, produce []Produce) ([]*types.ImageEntry, error) {
	logger := c.logger()
	if err := CreateDirs(c.Root, produce); err != nil {
		return nil, err
	}

	var entries []*types.ImageEntry
	for _, p := range produce {
		fresh, rotten := 0, 0
		for _, state := range types.States {
			got, err := c.collectState(ctx, p, state)
			entries = append(entries, got...)
			if regErr := register(c.Index, got); regErr != nil {
				return entries, regErr
			}
			if err != nil {
				return entries, err
			}
			if state == types.StateFresh {
				fresh = len(got)
			} else {
				rotten = len(got)
			}
		}
		logger.Info("collected produce", "produce", p.Name, "fresh", fresh, "rotten", rotten)
	}
	return entries, nil
}

func (c *Collector) collectState(ctx context.Context, p Produce, state string) ([]*types.ImageEntry, error) {
	logger := c.logger()
	target := c.Target
	if target <= 0 {
		target = DefaultPerState
	}
	quality := c.Quality
	if quality <= 0 {
		quality = imageproc.DefaultQuality
	}
	date := c.now().Format(time.DateOnly)

	var entries []*types.ImageEntry
	for i, url := range c.Sources.URLs(p.Name, state) {
		if len(entries) >= target {
			break
		}
		if i > 0 {
			if err := sleep(ctx, c.delay()); err != nil {
				return entries, err
			}
		}

		data, err := c.Fetch.Get(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return entries, ctx.Err()
			}
			logger.Warn("download failed", "produce", p.Name, "state", state, "url", url, "error", err)
			continue
		}
		jpg, err := imageproc.NormalizeBytes(data, quality)
		if err != nil {
			logger.Warn("image rejected", "produce", p.Name, "state", state, "url", url, "error", err)
			continue
		}

		index := len(entries)
		rec := c.downloadedRecord(p, state, index, imageproc.DataURL(imageproc.MIMEJPEG, jpg), date)
		path := RecordPath(c.Root, p.Name, state, index)
		if err := WriteRecord(path, rec); err != nil {
			logger.Warn("writing record failed", "path", path, "error", err)
			continue
		}
		entry := &types.ImageEntry{
			Produce: p.Name, State: state, Path: path,
			Source: SourceDownloaded, SHA256: imageproc.SHA256Hex(jpg),
		}
		entries = append(entries, entry)
		logger.Debug("saved sample", "produce", p.Name, "state", state, "path", path)
	}
	return entries, nil
}

// downloadedRecord builds the record of a downloaded image with scores drawn
// from the fresh (80-95) or rotten (10-30) range.
func (c *Collector) downloadedRecord(p Produce, state string, index int, dataURL, date string) *types.Record {
	r := c.rng()
	o := observedFor(p.Name, state)
	score := 10 + r.IntN(21)
	if state == types.StateFresh {
		score = 80 + r.IntN(16)
	}
	return &types.Record{
		Produce:         p.Name,
		State:           state,
		Index:           index,
		ImageBase64:     dataURL,
		Characteristics: o.Characteristics,
		FreshnessScore:  score,
		Confidence:      85 + r.IntN(11),
		Recommendation:  types.RecommendationFor(state),
		Details:         observedDetails(p.Name, state, o),
		Metadata: types.RecordMetadata{
			CollectionDate:  date,
			Source:          SourceDownloaded,
			ImageSource:     "downloaded",
			QualityVerified: true,
			HasRealImage:    true,
			Region:          p.Region,
		},
	}
}

func (c *Collector) rng() *rand.Rand {
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return c.Rand
}

func (c *Collector) delay() time.Duration {
	if c.Delay < 0 {
		return 0
	}
	if c.Delay == 0 {
		return DefaultDelay
	}
	return c.Delay
}

func (c *Collector) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Collector) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
