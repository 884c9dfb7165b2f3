package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and metadata.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetMarketBySlug returns a single market looked up by its URL slug. The
// city is attached to the returned market because the Gamma payload does not
// carry it as a structured field.
func (g *GammaClient) GetMarketBySlug(ctx context.Context, slug, city string) (domain.Market, error) {
	params := url.Values{}
	params.Set("slug", slug)

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: get market by slug %s: %w", slug, err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	if len(apiMarkets) == 0 {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: %w: slug=%s", domain.ErrMarketNotFound, slug)
	}

	return apiMarkets[0].ToDomainMarket(city), nil
}

// FindTemperatureMarket looks up the daily-high temperature market for a
// city and date. The slug follows the fixed Polymarket naming convention,
// e.g. "highest-temperature-in-nyc-on-march-18".
func (g *GammaClient) FindTemperatureMarket(ctx context.Context, city string, date time.Time) (domain.Market, error) {
	slug := TemperatureMarketSlug(city, date)
	m, err := g.GetMarketBySlug(ctx, slug, city)
	if err != nil {
		return domain.Market{}, err
	}
	m.TargetDate = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return m, nil
}

// SearchMarkets returns markets whose slug starts with the given prefix.
// The Gamma API has no structured weather filter, so discovery walks the
// paginated market list and filters client-side.
func (g *GammaClient) SearchMarkets(ctx context.Context, slugPrefix string, limit int) ([]APIMarket, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("active", "true")

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: search markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	var out []APIMarket
	for i := range apiMarkets {
		if strings.HasPrefix(apiMarkets[i].Slug, slugPrefix) {
			out = append(out, apiMarkets[i])
		}
	}
	return out, nil
}

// TemperatureMarketSlug builds the canonical slug for a city's daily-high
// market, e.g. "highest-temperature-in-nyc-on-march-18".
func TemperatureMarketSlug(city string, date time.Time) string {
	month := strings.ToLower(date.Month().String())
	return fmt.Sprintf("highest-temperature-in-%s-on-%s-%d",
		strings.ToLower(strings.ReplaceAll(city, " ", "-")), month, date.Day())
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
