package dataset

import (
	"context"
	"fmt"

	"stockview/internal/domain"
	"stockview/internal/store"
)

// Source describes where a Dataset is loaded from.
type Source struct {
	Kind       string // csv, parquet or sqlite
	CSVPath    string
	DataDir    string
	SQLitePath string
	Market     domain.Market
}

// Open loads the Dataset described by src.
func Open(ctx context.Context, src Source) (*Dataset, error) {
	switch src.Kind {
	case "", "csv":
		return LoadCSV(src.CSVPath)
	case "parquet":
		return FromStore(ctx, store.NewParquetStore(src.DataDir), src.market())
	case "sqlite":
		s, err := store.NewSQLiteStore(src.SQLitePath)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return FromStore(ctx, s, src.market())
	default:
		return nil, fmt.Errorf("unknown dataset source %q", src.Kind)
	}
}

func (s Source) market() domain.Market {
	if s.Market == "" {
		return domain.MarketUS
	}
	return s.Market
}
