// Package hub pulls labelled produce datasets from public dataset hubs.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/freshset/internal/imageproc"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// Hugging Face defaults.
const (
	DefaultHFBaseURL = "https://datasets-server.huggingface.co"
	DefaultHFDataset = "Densu341/Fresh-rotten-fruit"
	DefaultHFDirName = "huggingface-original"
	maxPageSize      = 100
)

// Getter downloads a URL. *fetch.Fetcher satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// HFClient reads dataset rows from the Hugging Face datasets server.
type HFClient struct {
	// BaseURL defaults to DefaultHFBaseURL, or HF_DATASETS_SERVER_URL when set.
	BaseURL string

	// Token is sent as a bearer token when non-empty. Defaults to HF_TOKEN.
	Token string

	HTTPClient *http.Client
	Images     Getter
	Logger     *slog.Logger
}

// HFImage is the image cell of a row.
type HFImage struct {
	Src    string `json:"src"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// HFRow is one dataset row. Cells stay raw so any column layout decodes.
type HFRow struct {
	RowIdx int                        `json:"row_idx"`
	Row    map[string]json.RawMessage `json:"row"`
}

// HFPage is one /rows response.
type HFPage struct {
	Rows         []HFRow `json:"rows"`
	NumRowsTotal int     `json:"num_rows_total"`
	Partial      bool    `json:"partial"`
}

// Rows fetches length rows starting at offset.
func (c *HFClient) Rows(ctx context.Context, dataset, config, split string, offset, length int) (*HFPage, error) {
	q := url.Values{}
	q.Set("dataset", dataset)
	q.Set("config", config)
	q.Set("split", split)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(length))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/rows?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("huggingface: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface: rows request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("huggingface: reading rows response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("huggingface: rows failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var page HFPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("huggingface: rows parse failed: %w", err)
	}
	return &page, nil
}

// HFOptions selects what to download.
type HFOptions struct {
	Dataset     string
	Config      string // defaults to "default"
	Split       string // defaults to "train"
	Dir         string
	PageSize    int // rows per request, at most 100
	Limit       int // stop after this many rows; zero means all
	ImageColumn string
	LabelColumn string
	FreshLabel  *int // label value meaning fresh, 1 when nil; other values are rotten
}

// DefaultFreshLabel is the class label of fresh produce in the default dataset.
const DefaultFreshLabel = 1

func (o *HFOptions) defaults() {
	if o.Dataset == "" {
		o.Dataset = DefaultHFDataset
	}
	if o.Config == "" {
		o.Config = "default"
	}
	if o.Split == "" {
		o.Split = "train"
	}
	if o.PageSize <= 0 || o.PageSize > maxPageSize {
		o.PageSize = maxPageSize
	}
	if o.ImageColumn == "" {
		o.ImageColumn = "image"
	}
	if o.LabelColumn == "" {
		o.LabelColumn = "label"
	}
	if o.FreshLabel == nil {
		fresh := DefaultFreshLabel
		o.FreshLabel = &fresh
	}
}

// Counts reports how many images were saved per state.
type Counts struct {
	Fresh  int `json:"fresh"`
	Rotten int `json:"rotten"`
	Failed int `json:"failed"`
}

// Total is Fresh + Rotten.
func (c Counts) Total() int { return c.Fresh + c.Rotten }

// Download pages through the split and saves every image as
// <dir>/<state>/<state>_<NNNNN>.jpg. Rows whose image cannot be fetched or
// decoded are logged and skipped.
func (c *HFClient) Download(ctx context.Context, opts HFOptions) (Counts, error) {
	opts.defaults()
	logger := c.logger()
	var counts Counts
	for _, state := range types.States {
		if err := os.MkdirAll(filepath.Join(opts.Dir, state), 0o755); err != nil {
			return counts, err
		}
	}

	offset := 0
	for {
		length := opts.PageSize
		if opts.Limit > 0 && opts.Limit-offset < length {
			length = opts.Limit - offset
		}
		if length <= 0 {
			break
		}
		page, err := c.Rows(ctx, opts.Dataset, opts.Config, opts.Split, offset, length)
		if err != nil {
			return counts, err
		}
		if offset == 0 {
			logger.Info("loading dataset", "dataset", opts.Dataset, "rows", page.NumRowsTotal)
		}
		for _, row := range page.Rows {
			if err := c.saveRow(ctx, row, opts, &counts); err != nil {
				if ctx.Err() != nil {
					return counts, ctx.Err()
				}
				counts.Failed++
				logger.Warn("row skipped", "row", row.RowIdx, "error", err)
			}
		}
		offset += len(page.Rows)
		if offset%1000 < len(page.Rows) {
			logger.Info("progress", "processed", offset, "total", page.NumRowsTotal)
		}
		if len(page.Rows) == 0 || offset >= page.NumRowsTotal {
			break
		}
	}
	logger.Info("dataset downloaded", "fresh", counts.Fresh, "rotten", counts.Rotten, "dir", opts.Dir)
	return counts, nil
}

func (c *HFClient) saveRow(ctx context.Context, row HFRow, opts HFOptions, counts *Counts) error {
	var label int
	if err := json.Unmarshal(row.Row[opts.LabelColumn], &label); err != nil {
		return fmt.Errorf("label column %q: %w", opts.LabelColumn, err)
	}
	var cell HFImage
	if err := json.Unmarshal(row.Row[opts.ImageColumn], &cell); err != nil || cell.Src == "" {
		return fmt.Errorf("image column %q has no src", opts.ImageColumn)
	}

	data, err := c.Images.Get(ctx, cell.Src)
	if err != nil {
		return err
	}
	img, _, err := imageproc.Decode(data)
	if err != nil {
		return err
	}

	state, n := types.StateRotten, &counts.Rotten
	if label == *opts.FreshLabel {
		state, n = types.StateFresh, &counts.Fresh
	}
	path := filepath.Join(opts.Dir, state, fmt.Sprintf("%s_%05d.jpg", state, *n))
	if err := imageproc.SaveJPEG(path, imageproc.Normalize(img, 0), imageproc.HubQuality); err != nil {
		return err
	}
	*n++
	return nil
}

func (c *HFClient) baseURL() string {
	if s := strings.TrimSpace(c.BaseURL); s != "" {
		return strings.TrimRight(s, "/")
	}
	if v := strings.TrimSpace(os.Getenv("HF_DATASETS_SERVER_URL")); v != "" {
		return strings.TrimRight(v, "/")
	}
	return DefaultHFBaseURL
}

func (c *HFClient) token() string {
	if c.Token != "" {
		return c.Token
	}
	return strings.TrimSpace(os.Getenv("HF_TOKEN"))
}

func (c *HFClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (c *HFClient) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
