package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guregu/null/v6"

	"stockview/internal/dashboard"
	"stockview/pkg/stockview"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: stockview-cli <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version    Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  controls   Show the dashboard control ranges and defaults\n")
	fmt.Fprintf(os.Stderr, "  symbols    List available symbols\n")
	fmt.Fprintf(os.Stderr, "  years      List the years with data for -symbol\n")
	fmt.Fprintf(os.Stderr, "  series     Print the derived series for a selection\n")
	fmt.Fprintf(os.Stderr, "  chart      Save the -panel chart as PNG\n")
	fmt.Fprintf(os.Stderr, "\nThe server URL comes from -addr or STOCKVIEW_URL (default http://localhost:8080).\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	addr := fs.String("addr", serverURL(), "stockview-server base URL")
	symbol := fs.String("symbol", "", "ticker symbol")
	year := fs.Int("year", 0, "year (default: latest for the symbol)")
	sma := fs.Int("sma", 0, "SMA window (default: server default)")
	rsi := fs.Int("rsi", 0, "RSI window (default: server default)")
	fields := fs.String("fields", "", "comma-separated price fields; empty hides all")
	panel := fs.String("panel", "price", "chart panel: price, volume or rsi")
	out := fs.String("o", "", "chart output file (default: <symbol>-<year>-<panel>.png)")
	fs.Parse(os.Args[2:])

	q := stockview.Query{Symbol: *symbol, Year: *year, SMAWindow: *sma, RSIWindow: *rsi}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "fields" {
			q.Fields = splitFields(*fields)
		}
	})

	c := stockview.NewClient(*addr)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var err error
	switch cmd {
	case "version":
		fmt.Printf("stockview-cli %s\n", version)
	case "controls":
		err = printControls(ctx, c)
	case "symbols":
		var syms []string
		if syms, err = c.GetSymbols(ctx); err == nil {
			fmt.Println(strings.Join(syms, "\n"))
		}
	case "years":
		var years []int
		if years, err = c.GetYears(ctx, *symbol); err == nil {
			for _, y := range years {
				fmt.Println(y)
			}
		}
	case "series":
		err = printSeries(ctx, c, q)
	case "chart":
		err = saveChart(ctx, c, *panel, q, *out)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serverURL() string {
	if v := os.Getenv("STOCKVIEW_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func splitFields(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printControls(ctx context.Context, c *stockview.Client) error {
	ctrl, err := c.GetControls(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "symbols\t%d\n", len(ctrl.Symbols))
	fmt.Fprintf(w, "years\t%d..%d\n", ctrl.MinYear, ctrl.MaxYear)
	fmt.Fprintf(w, "sma\t%d..%d step %d (default %d)\n", ctrl.SMA.Min, ctrl.SMA.Max, ctrl.SMA.Step, ctrl.SMA.Default)
	fmt.Fprintf(w, "rsi\t%d..%d step %d (default %d)\n", ctrl.RSI.Min, ctrl.RSI.Max, ctrl.RSI.Step, ctrl.RSI.Default)
	fmt.Fprintf(w, "fields\t%s\n", strings.Join(ctrl.Fields, ", "))
	d := ctrl.Default
	fmt.Fprintf(w, "default\t%s %d sma=%d rsi=%d\n", d.Symbol, d.Year, d.SMAWindow, d.RSIWindow)
	return w.Flush()
}

func printSeries(ctx context.Context, c *stockview.Client, q stockview.Query) error {
	s, err := c.GetSeries(ctx, q)
	if err != nil {
		return err
	}
	st := s.State
	fmt.Printf("%s %d  sma=%d rsi=%d  fields=%s  rows=%d\n\n",
		st.Symbol, st.Year, st.SMAWindow, st.RSIWindow, strings.Join(st.Fields, ","), len(s.Dates))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(w, "date\t")
	for _, f := range st.Fields {
		fmt.Fprintf(w, "%s\t", f)
	}
	fmt.Fprintf(w, "sma%d\trsi%d\tvolume\t\n", st.SMAWindow, st.RSIWindow)
	for i, d := range s.Dates {
		fmt.Fprintf(w, "%s\t", d)
		for _, f := range st.Fields {
			fmt.Fprintf(w, "%s\t", dashboard.FormatPrice(value(s.Prices[f], i)))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t\n",
			dashboard.FormatPrice(value(s.SMA, i)),
			dashboard.FormatOscillator(value(s.RSI, i)),
			dashboard.FormatVolume(s.Volume[i]),
		)
	}
	return w.Flush()
}

// value returns col[i], or NaN when it is null or out of range.
func value(col []null.Float, i int) float64 {
	if i >= len(col) || !col[i].Valid {
		return math.NaN()
	}
	return col[i].Float64
}

func saveChart(ctx context.Context, c *stockview.Client, panel string, q stockview.Query, out string) error {
	img, err := c.GetChart(ctx, panel, q)
	if errors.Is(err, stockview.ErrNoChart) {
		fmt.Fprintln(os.Stderr, "nothing to draw for this selection")
		return nil
	}
	if err != nil {
		return err
	}
	if out == "" {
		sym := q.Symbol
		if sym == "" {
			sym = "default"
		}
		out = fmt.Sprintf("%s-%d-%s.png", strings.ToUpper(sym), q.Year, panel)
	}
	if err := os.WriteFile(out, img, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", out, len(img))
	return nil
}
