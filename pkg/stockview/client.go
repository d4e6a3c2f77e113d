// Package stockview is a Go client for the stockview-server HTTP API.
package stockview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"
)

// ErrNoChart is returned by GetChart when the server has nothing to draw.
var ErrNoChart = errors.New("no chart for selection")

// Bounds is an integer control range.
type Bounds struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Step    int `json:"step"`
	Default int `json:"default"`
}

// Selection is a dashboard view state.
type Selection struct {
	Symbol    string   `json:"symbol"`
	Year      int      `json:"year"`
	SMAWindow int      `json:"sma"`
	RSIWindow int      `json:"rsi"`
	Fields    []string `json:"fields"`
}

// Controls describes the choices the server offers.
type Controls struct {
	Symbols []string  `json:"symbols"`
	MinYear int       `json:"minYear"`
	MaxYear int       `json:"maxYear"`
	SMA     Bounds    `json:"sma"`
	RSI     Bounds    `json:"rsi"`
	Fields  []string  `json:"fields"`
	Default Selection `json:"default"`
}

// Series is the derived data for one selection. Absent values are invalid
// null.Floats.
type Series struct {
	State  Selection               `json:"state"`
	Dates  []string                `json:"dates"`
	Prices map[string][]null.Float `json:"prices"`
	SMA    []null.Float            `json:"sma"`
	RSI    []null.Float            `json:"rsi"`
	Volume []int64                 `json:"volume"`
}

// Query selects a series. Zero fields are left to the server defaults; a
// nil Fields keeps the default field set while an empty non-nil slice hides
// every price line.
type Query struct {
	Symbol    string
	Year      int
	SMAWindow int
	RSIWindow int
	Fields    []string
}

func (q Query) values() url.Values {
	v := url.Values{}
	if q.Symbol != "" {
		v.Set("symbol", q.Symbol)
	}
	if q.Year != 0 {
		v.Set("year", strconv.Itoa(q.Year))
	}
	if q.SMAWindow != 0 {
		v.Set("sma", strconv.Itoa(q.SMAWindow))
	}
	if q.RSIWindow != 0 {
		v.Set("rsi", strconv.Itoa(q.RSIWindow))
	}
	if q.Fields != nil {
		v.Set("fields", strings.Join(q.Fields, ","))
	}
	return v
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stockview: %d: %s", e.StatusCode, e.Message)
}

// Client provides a Go SDK for interacting with the stockview-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new stockview API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetControls retrieves the control surface.
func (c *Client) GetControls(ctx context.Context) (*Controls, error) {
	var out Controls
	if err := c.getJSON(ctx, "/api/controls", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSymbols retrieves the symbols in the server's dataset.
func (c *Client) GetSymbols(ctx context.Context) ([]string, error) {
	var out struct {
		Symbols []string `json:"symbols"`
	}
	if err := c.getJSON(ctx, "/api/symbols", nil, &out); err != nil {
		return nil, err
	}
	return out.Symbols, nil
}

// GetYears retrieves the years with data for symbol.
func (c *Client) GetYears(ctx context.Context, symbol string) ([]int, error) {
	var out struct {
		Years []int `json:"years"`
	}
	if err := c.getJSON(ctx, "/api/years", url.Values{"symbol": {symbol}}, &out); err != nil {
		return nil, err
	}
	return out.Years, nil
}

// GetSeries retrieves the derived series for q.
func (c *Client) GetSeries(ctx context.Context, q Query) (*Series, error) {
	var out Series
	if err := c.getJSON(ctx, "/api/series", q.values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetChart retrieves one chart panel ("price", "volume" or "rsi") as PNG
// bytes. It returns ErrNoChart when the selection has nothing to draw.
func (c *Client) GetChart(ctx context.Context, panel string, q Query) ([]byte, error) {
	resp, err := c.do(ctx, "/api/chart/"+url.PathEscape(panel)+".png", q.values())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil, ErrNoChart
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, v any) error {
	resp, err := c.do(ctx, path, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// do issues a GET and converts error statuses into *APIError. The caller
// closes the body of a successful response.
func (c *Client) do(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var body struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
			msg = body.Error
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return resp, nil
}
