package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/eventlens/eventlens/internal/config"
	"github.com/eventlens/eventlens/internal/models"
	"github.com/goccy/go-json"
)

const (
	pageSize = 100
	// maxPages bounds runaway pagination against a misbehaving upstream.
	maxPages = 50
)

// eventsQuery is the catalog query issued per page.
const eventsQuery = `
query GetEvents($page: Int!) {
  events(page: $page, pageSize: 100) {
    id
    slug
    title
    beginsAt
    endsAt
    createdAt
    banner { imageUrl }
    isLive
    isPublic
    totalPlannings
    totalExhibitors
    totalSpeakers
    groups { id name peopleCount }
    community { id name logoUrl bannerImageUrl }
    address { city country }
    htmlDescription
    updatedAt
  }
}
`

// StatusError is a non-2xx response from the catalog API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog API HTTP %d: %s", e.Status, e.Body)
}

// Catalog is the fetched event population bucketed by lifecycle.
type Catalog struct {
	ByLifecycle map[models.Lifecycle][]models.Event
}

// All flattens the catalog into a single slice, Active first, then Future,
// then Past.
func (c *Catalog) All() []models.Event {
	var all []models.Event
	for _, lc := range []models.Lifecycle{models.LifecycleActive, models.LifecycleFuture, models.LifecyclePast} {
		all = append(all, c.ByLifecycle[lc]...)
	}
	return all
}

// Client pages through the upstream event catalog.
type Client struct {
	cfg        config.PlatformConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a catalog client.
func NewClient(cfg config.PlatformConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// FetchEvents retrieves the full event catalog, applies the exclusion rules
// from settings, and buckets each remaining event by lifecycle. Excluded
// events are omitted entirely, not flagged.
func (c *Client) FetchEvents(ctx context.Context, settings models.SyncSettings) (*Catalog, error) {
	raw, err := c.fetchAllPages(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	catalog := &Catalog{ByLifecycle: map[models.Lifecycle][]models.Event{}}

	excluded := 0
	for _, ev := range raw {
		if settings.EventDisabled(ev.ID) || settings.CommunityDisabled(ev.CommunityName()) {
			excluded++
			continue
		}

		lc := ev.Classify(now)
		catalog.ByLifecycle[lc] = append(catalog.ByLifecycle[lc], ev)
	}

	c.logger.Info("catalog fetched",
		"total", len(raw),
		"excluded", excluded,
		"active", len(catalog.ByLifecycle[models.LifecycleActive]),
		"future", len(catalog.ByLifecycle[models.LifecycleFuture]),
		"past", len(catalog.ByLifecycle[models.LifecyclePast]),
	)

	return catalog, nil
}

func (c *Client) fetchAllPages(ctx context.Context) ([]models.Event, error) {
	var all []models.Event

	for page := 1; page <= maxPages; page++ {
		batch, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch catalog page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}

		all = append(all, batch...)

		if len(batch) < pageSize {
			break
		}
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]models.Event, error) {
	body := struct {
		Query     string         `json:"query"`
		Variables map[string]int `json:"variables"`
	}{
		Query:     eventsQuery,
		Variables: map[string]int{"page": page},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal catalog query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.CatalogURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Status: resp.StatusCode, Body: string(detail)}
	}

	var decoded struct {
		Data struct {
			Events []models.Event `json:"events"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode catalog page: %w", err)
	}

	return decoded.Data.Events, nil
}
