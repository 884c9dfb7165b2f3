package polymarket

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success     bool   `json:"success"`
	ErrorMsg    string `json:"errorMsg,omitempty"`
	OrderID     string `json:"orderID,omitempty"`
	Status      string `json:"status,omitempty"`
	TransactID  string `json:"transactID,omitempty"`
	ShouldRetry bool   `json:"shouldRetry,omitempty"`
}

// ToDomainOrderResult converts an APIOrderResult into the domain type.
func (r *APIOrderResult) ToDomainOrderResult() domain.OrderResult {
	status := domain.OrderStatusOpen
	switch strings.ToLower(r.Status) {
	case "matched", "filled":
		status = domain.OrderStatusFilled
	case "delayed", "unmatched", "live", "open":
		status = domain.OrderStatusOpen
	case "":
		if !r.Success {
			status = domain.OrderStatusRejected
		}
	default:
		if !r.Success {
			status = domain.OrderStatusRejected
		}
	}
	return domain.OrderResult{
		OrderID: r.OrderID,
		Status:  status,
		Message: r.ErrorMsg,
	}
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
// Weather markets carry one token per temperature bucket.
type APIMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Slug          string   `json:"slug"`
	Active        flexBool `json:"active"`
	Closed        bool     `json:"closed"`
	Outcomes      string   `json:"outcomes"`      // JSON-encoded: e.g. "[\"78-79°\",\"80-81°\"]"
	OutcomePrices string   `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.4\",\"0.6\"]"
	ClobTokenIDs  string   `json:"clobTokenIds"`  // JSON-encoded token ID list
	Volume        string   `json:"volume"`
	Liquidity     string   `json:"liquidity"`
	EndDateISO    string   `json:"endDateIso"`
	UpdatedAt     string   `json:"updatedAt"`
}

// ToDomainMarket converts an APIMarket into a domain.Market, decoding the
// JSON-encoded outcome, price, and token lists and parsing the temperature
// range out of every outcome label. Labels that do not parse keep a zero
// range and simply never match a temperature.
func (m *APIMarket) ToDomainMarket(city string) domain.Market {
	var labels, prices, tokens []string
	_ = json.Unmarshal([]byte(m.Outcomes), &labels)
	_ = json.Unmarshal([]byte(m.OutcomePrices), &prices)
	_ = json.Unmarshal([]byte(m.ClobTokenIDs), &tokens)

	outcomes := make([]domain.Outcome, 0, len(labels))
	for i, label := range labels {
		o := domain.Outcome{Label: label}
		if i < len(tokens) {
			o.TokenID = tokens[i]
		}
		if i < len(prices) {
			o.Price, _ = strconv.ParseFloat(prices[i], 64)
		}
		if r, ok := ParseTemperatureLabel(label); ok {
			o.Range = r
		}
		outcomes = append(outcomes, o)
	}

	market := domain.Market{
		ID:       m.ID,
		Slug:     m.Slug,
		City:     city,
		Question: m.Question,
		Outcomes: outcomes,
		Active:   bool(m.Active),
		Closed:   m.Closed,
	}
	market.Volume, _ = strconv.ParseFloat(m.Volume, 64)
	market.Liquidity, _ = strconv.ParseFloat(m.Liquidity, 64)
	if t, err := time.Parse(time.RFC3339, m.EndDateISO); err == nil {
		market.TargetDate = t
	}
	if t, err := time.Parse(time.RFC3339, m.UpdatedAt); err == nil {
		market.UpdatedAt = t
	}
	return market
}

var (
	rangeLabelRe = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*[-–]\s*(-?\d+(?:\.\d+)?)`)
	boundLabelRe = regexp.MustCompile(`(-?\d+(?:\.\d+)?)`)
)

// ParseTemperatureLabel extracts a temperature range from an outcome label.
// Supported shapes: "78-79°", "80° or above", "80° or higher", "77° or
// below", "77° or lower". The boolean is false when no number is found.
func ParseTemperatureLabel(label string) (domain.TemperatureRange, bool) {
	if m := rangeLabelRe.FindStringSubmatch(label); m != nil {
		low, err1 := strconv.ParseFloat(m[1], 64)
		high, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil {
			if low > high {
				low, high = high, low
			}
			return domain.TemperatureRange{Low: low, High: high}, true
		}
	}

	m := boundLabelRe.FindStringSubmatch(label)
	if m == nil {
		return domain.TemperatureRange{}, false
	}
	bound, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return domain.TemperatureRange{}, false
	}

	lower := strings.ToLower(label)
	switch {
	case strings.Contains(lower, "above") || strings.Contains(lower, "higher"):
		return domain.OpenHigh(bound), true
	case strings.Contains(lower, "below") || strings.Contains(lower, "lower"):
		return domain.OpenLow(bound), true
	}
	return domain.TemperatureRange{Low: bound, High: bound}, true
}

// --------------------------------------------------------------------------
// WebSocket message DTOs
// --------------------------------------------------------------------------

// WSSubscription is the subscription payload sent after connecting to the
// market channel.
type WSSubscription struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"` // always "market"
}

// wsEnvelope carries the discriminator field shared by all data messages.
type wsEnvelope struct {
	EventType string `json:"event_type"`
}

// wsLevel is a price level as encoded on the wire (strings).
type wsLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

func (l wsLevel) toDomain() domain.PriceLevel {
	price, _ := strconv.ParseFloat(l.Price, 64)
	size, _ := strconv.ParseFloat(l.Size, 64)
	return domain.PriceLevel{Price: price, Size: size}
}

// BookMessage is a full orderbook snapshot from the "book" event.
type BookMessage struct {
	EventType string    `json:"event_type"`
	AssetID   string    `json:"asset_id"`
	Bids      []wsLevel `json:"bids"`
	Asks      []wsLevel `json:"asks"`
	Timestamp string    `json:"timestamp"`
}

// ToDomainSnapshot converts a BookMessage into a domain.BookSnapshot.
func (b *BookMessage) ToDomainSnapshot() domain.BookSnapshot {
	snap := domain.BookSnapshot{
		AssetID:   b.AssetID,
		Bids:      make([]domain.PriceLevel, 0, len(b.Bids)),
		Asks:      make([]domain.PriceLevel, 0, len(b.Asks)),
		Timestamp: parseWSTimestamp(b.Timestamp),
	}
	for _, l := range b.Bids {
		snap.Bids = append(snap.Bids, l.toDomain())
	}
	for _, l := range b.Asks {
		snap.Asks = append(snap.Asks, l.toDomain())
	}
	return snap
}

// PriceChangeMessage is a top-of-book move from the "price_change" event.
type PriceChangeMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Side      string `json:"side"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
}

// ToDomain converts a PriceChangeMessage into a domain.PriceChange.
func (p *PriceChangeMessage) ToDomain() domain.PriceChange {
	price, _ := strconv.ParseFloat(p.Price, 64)
	size, _ := strconv.ParseFloat(p.Size, 64)
	return domain.PriceChange{
		AssetID:   p.AssetID,
		Price:     price,
		Side:      p.Side,
		Size:      size,
		Timestamp: parseWSTimestamp(p.Timestamp),
	}
}

// LastTradeMessage is an execution report from the "last_trade_price" event.
type LastTradeMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
}

// ToDomain converts a LastTradeMessage into a domain.LastTrade.
func (t *LastTradeMessage) ToDomain() domain.LastTrade {
	price, _ := strconv.ParseFloat(t.Price, 64)
	size, _ := strconv.ParseFloat(t.Size, 64)
	return domain.LastTrade{
		AssetID:   t.AssetID,
		Price:     price,
		Size:      size,
		Timestamp: parseWSTimestamp(t.Timestamp),
	}
}

// TickSizeMessage reports a tick size change from the "tick_size_change" event.
type TickSizeMessage struct {
	EventType   string `json:"event_type"`
	AssetID     string `json:"asset_id"`
	OldTickSize string `json:"old_tick_size"`
	NewTickSize string `json:"new_tick_size"`
	Timestamp   string `json:"timestamp"`
}

// ToDomain converts a TickSizeMessage into a domain.TickSizeChange.
func (t *TickSizeMessage) ToDomain() domain.TickSizeChange {
	oldTick, _ := strconv.ParseFloat(t.OldTickSize, 64)
	newTick, _ := strconv.ParseFloat(t.NewTickSize, 64)
	return domain.TickSizeChange{
		AssetID:     t.AssetID,
		OldTickSize: oldTick,
		NewTickSize: newTick,
		Timestamp:   parseWSTimestamp(t.Timestamp),
	}
}

// parseWSTimestamp parses the millisecond epoch strings the feed uses,
// falling back to now for anything unparseable.
func parseWSTimestamp(s string) time.Time {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms)
	}
	return time.Now()
}
