package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yungbote/nutrition-etl/internal/pkg/httpx"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

const (
	DefaultBaseURL  = "https://world.openfoodfacts.org/cgi/search.pl"
	DefaultFields   = "code,product_name,brands,nutriscore_grade,nutriments,ingredients_text,categories"
	DefaultPageSize = 1000
	SourceDirName   = "openfoodfacts"
	ManifestName    = "manifest.json"
	userAgent       = "nutrition-etl/1.0"
)

type Config struct {
	BaseURL  string
	Fields   string
	PageSize int
	// MaxPages <= 0 fetches until the catalog returns an empty page.
	MaxPages  int
	PageDelay time.Duration
	Timeout   time.Duration
	Retries   int
}

type Manifest struct {
	Count       int       `json:"count"`
	Pages       int       `json:"pages"`
	BaseURL     string    `json:"base_url"`
	Fields      string    `json:"fields"`
	GeneratedAt time.Time `json:"generated_at"`
}

type Extractor struct {
	cfg     Config
	client  *retryablehttp.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewExtractor(cfg Config, baseLog *logger.Logger) *Extractor {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Fields) == "" {
		cfg.Fields = DefaultFields
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	log := baseLog.With("service", "Extractor")

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.Retries
	client.RetryWaitMin = time.Second
	client.RetryWaitMax = 10 * time.Second
	client.CheckRetry = httpx.CheckRetry
	client.Backoff = httpx.Backoff
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = log

	limit := rate.Inf
	if cfg.PageDelay > 0 {
		limit = rate.Every(cfg.PageDelay)
	}
	return &Extractor{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

// RawDir is the per-day directory page files are written to.
func RawDir(dataDir string, day time.Time) string {
	return filepath.Join(dataDir, "raw", day.Format("20060102"), SourceDirName)
}

func PageFileName(page int) string {
	return fmt.Sprintf("off_p%04d.json", page)
}

// Run fetches pages into outDir until an empty page or MaxPages, then writes the manifest.
func (e *Extractor) Run(ctx context.Context, outDir string) (Manifest, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create raw dir: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	total, pages := 0, 0
	var fetchErr error
	for page := 1; e.cfg.MaxPages <= 0 || page <= e.cfg.MaxPages; page++ {
		if err := e.limiter.Wait(gctx); err != nil {
			fetchErr = err
			break
		}
		products, err := e.fetchPage(gctx, page)
		if err != nil {
			fetchErr = err
			break
		}
		if len(products) == 0 {
			break
		}
		total += len(products)
		pages = page
		path := filepath.Join(outDir, PageFileName(page))
		g.Go(func() error {
			return writeFile(path, products)
		})
		e.log.Debug("Fetched catalog page", "page", page, "products", len(products))
	}
	if err := g.Wait(); err != nil {
		return Manifest{}, fmt.Errorf("write page: %w", err)
	}
	if fetchErr != nil {
		return Manifest{}, fetchErr
	}

	m := Manifest{
		Count:       total,
		Pages:       pages,
		BaseURL:     e.cfg.BaseURL,
		Fields:      e.cfg.Fields,
		GeneratedAt: time.Now().UTC(),
	}
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, err
	}
	if err := writeFile(filepath.Join(outDir, ManifestName), json.RawMessage(body)); err != nil {
		return Manifest{}, fmt.Errorf("write manifest: %w", err)
	}
	e.log.Info("Extraction finished", "products", total, "pages", pages, "dir", outDir)
	return m, nil
}

func (e *Extractor) fetchPage(ctx context.Context, page int) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("action", "process")
	q.Set("json", "1")
	q.Set("page_size", strconv.Itoa(e.cfg.PageSize))
	q.Set("fields", e.cfg.Fields)
	q.Set("page", strconv.Itoa(page))

	u := e.cfg.BaseURL
	if strings.Contains(u, "?") {
		u += "&" + q.Encode()
	} else {
		u += "?" + q.Encode()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch page %d: status %d: %s", page, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var payload struct {
		Products []json.RawMessage `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode page %d: %w", page, err)
	}
	return payload.Products, nil
}

func writeFile(path string, v any) error {
	var body []byte
	switch b := v.(type) {
	case json.RawMessage:
		body = b
	default:
		var err error
		if body, err = json.Marshal(v); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
