package dashboard

import (
	"fmt"
	"strings"

	"stockview/internal/dataset"
	"stockview/internal/domain"
	"stockview/internal/indicator"
)

// Bounds describes an integer control: the allowed range, the increment
// used when stepping it, and its initial value.
type Bounds struct {
	Min     int `yaml:"min" json:"min"`
	Max     int `yaml:"max" json:"max"`
	Step    int `yaml:"step" json:"step"`
	Default int `yaml:"default" json:"default"`
}

var (
	DefaultSMABounds = Bounds{Min: 10, Max: 100, Step: 10, Default: 20}
	DefaultRSIBounds = Bounds{Min: 5, Max: 50, Step: 1, Default: 14}
)

// DefaultSymbol is preselected when the dataset contains it.
const DefaultSymbol = "MMM"

// Check verifies the bounds themselves are usable.
func (b Bounds) Check() error {
	if b.Min <= 0 {
		return fmt.Errorf("min %d must be positive", b.Min)
	}
	if b.Max < b.Min {
		return fmt.Errorf("max %d below min %d", b.Max, b.Min)
	}
	if b.Step <= 0 {
		return fmt.Errorf("step %d must be positive", b.Step)
	}
	if b.Default < b.Min || b.Default > b.Max {
		return fmt.Errorf("default %d outside [%d, %d]", b.Default, b.Min, b.Max)
	}
	return nil
}

// Contains reports whether v is inside [Min, Max].
func (b Bounds) Contains(v int) bool { return v >= b.Min && v <= b.Max }

// Nudge moves v by n steps and clamps the result into range.
func (b Bounds) Nudge(v, n int) int {
	v += n * b.Step
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// ValidationError reports a ViewState rejected at the control surface.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Controls is the control surface: the choices offered to the user and the
// rules a selection must satisfy before it reaches Recompute.
type Controls struct {
	Symbols       []string       `json:"symbols"`
	DefaultSymbol string         `json:"defaultSymbol"`
	DefaultYear   int            `json:"defaultYear"`
	MinYear       int            `json:"minYear"`
	MaxYear       int            `json:"maxYear"`
	SMA           Bounds         `json:"sma"`
	RSI           Bounds         `json:"rsi"`
	Fields        []domain.Field `json:"fields"`
}

// NewControls derives the control surface from ds. The symbol list and year
// range come from the data; the default year is the latest one the default
// symbol has rows for.
func NewControls(ds *dataset.Dataset, sma, rsi Bounds) Controls {
	c := Controls{
		Symbols: ds.Symbols(),
		SMA:     sma,
		RSI:     rsi,
		Fields:  append([]domain.Field(nil), domain.AllFields...),
	}
	if years := ds.Years(); len(years) > 0 {
		c.MinYear = years[0]
		c.MaxYear = years[len(years)-1]
	}
	switch {
	case ds.HasSymbol(DefaultSymbol):
		c.DefaultSymbol = DefaultSymbol
	case len(c.Symbols) > 0:
		c.DefaultSymbol = c.Symbols[0]
	}
	c.DefaultYear = c.MaxYear
	if years := ds.YearsFor(c.DefaultSymbol); len(years) > 0 {
		c.DefaultYear = years[len(years)-1]
	}
	return c
}

// DefaultState returns the initial selection.
func (c Controls) DefaultState() ViewState {
	return ViewState{
		Symbol:    c.DefaultSymbol,
		Year:      c.DefaultYear,
		SMAWindow: c.SMA.Default,
		RSIWindow: c.RSI.Default,
		Fields:    append([]domain.Field(nil), domain.AllFields...),
	}
}

// Validate rejects a selection the control surface would never produce.
func (c Controls) Validate(v ViewState) error {
	if !c.hasSymbol(v.Symbol) {
		return &ValidationError{Field: "symbol", Message: fmt.Sprintf("unknown symbol %q", v.Symbol)}
	}
	if v.Year < c.MinYear || v.Year > c.MaxYear {
		return &ValidationError{Field: "year", Message: fmt.Sprintf("%d outside [%d, %d]", v.Year, c.MinYear, c.MaxYear)}
	}
	if err := checkWindow("sma_window", v.SMAWindow, c.SMA); err != nil {
		return err
	}
	if err := checkWindow("rsi_window", v.RSIWindow, c.RSI); err != nil {
		return err
	}
	for _, f := range v.Fields {
		if _, err := domain.ParseField(string(f)); err != nil {
			return &ValidationError{Field: "fields", Message: err.Error()}
		}
	}
	return nil
}

func checkWindow(name string, w int, b Bounds) error {
	if w <= 0 {
		return &ValidationError{Field: name, Message: fmt.Sprintf("%d must be positive", w), Err: indicator.ErrInvalidWindow}
	}
	if !b.Contains(w) {
		return &ValidationError{Field: name, Message: fmt.Sprintf("%d outside [%d, %d]", w, b.Min, b.Max)}
	}
	return nil
}

func (c Controls) hasSymbol(s string) bool {
	for _, sym := range c.Symbols {
		if strings.EqualFold(sym, s) {
			return true
		}
	}
	return false
}
