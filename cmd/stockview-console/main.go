package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stockview/internal/config"
	"stockview/internal/dashboard"
	"stockview/internal/dataset"
	"stockview/internal/util"
)

func main() { os.Exit(run()) }

func run() int {
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		return 1
	}

	// The terminal belongs to the UI; log to a file.
	logPath := fmt.Sprintf("/tmp/stockview-console-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		return 1
	}
	defer logFile.Close()
	logger := util.NewLoggerTo(logFile, cfg.Logging.Level, "text")

	fmt.Fprintf(os.Stderr, "loading %s dataset...", cfg.Dataset.Source)
	ds, err := dataset.Open(context.Background(), cfg.DatasetSource())
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nloading dataset: %v\n", err)
		return 1
	}
	if ds.Len() == 0 {
		fmt.Fprintln(os.Stderr, "\ndataset is empty")
		return 1
	}
	fmt.Fprintf(os.Stderr, " %s bars\n", dashboard.FormatInt(int64(ds.Len())))
	logger.Info("dataset loaded", "bars", ds.Len(), "symbols", len(ds.Symbols()))

	controls := dashboard.NewControls(ds, cfg.Controls.SMA, cfg.Controls.RSI)
	opts := dashboard.Options{FlatPolicy: cfg.FlatPolicy()}

	p := tea.NewProgram(
		initialModel(ds, controls, opts, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
