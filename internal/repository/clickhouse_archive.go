package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	pkgch "MarketPulse/pkg/clickhouse"
	applogger "MarketPulse/pkg/logger"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS %s (
    ts        DateTime,
    kind      LowCardinality(String),
    asset_id  String,
    symbol    LowCardinality(String),
    name      String,
    price     Float64,
    score     Float64,
    reasons   String
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(ts)
ORDER BY (kind, symbol, ts)
TTL ts + INTERVAL 90 DAY
`

// ClickHouseSignalArchive implements SignalArchive for ClickHouse. Every
// cycle's scored signals land here for offline study of how scores evolved.
type ClickHouseSignalArchive struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseSignalArchive creates the archive on an existing client.
func NewClickHouseSignalArchive(ch *pkgch.Client, table string, l *applogger.Logger) repository.SignalArchive {
	return &ClickHouseSignalArchive{db: ch.DB(), table: table, l: l}
}

func (s *ClickHouseSignalArchive) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(archiveSchema, s.table)); err != nil {
		return fmt.Errorf("init signal archive: %w", err)
	}
	return nil
}

func (s *ClickHouseSignalArchive) StoreBatch(ctx context.Context, at time.Time, signals []models.ScoredSignal) error {
	if len(signals) == 0 {
		return nil
	}

	// Multi-row VALUES insert to keep one round-trip per cycle. Cycles carry
	// at most a few hundred signals so no chunking is needed.
	values := make([]string, 0, len(signals))
	args := make([]interface{}, 0, len(signals)*8)
	for _, sig := range signals {
		if sig.Symbol == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			at,
			string(sig.Kind),
			sig.AssetID,
			sig.Symbol,
			sig.Name,
			sig.Price,
			sig.Score,
			strings.Join(sig.Reasons, "; "),
		)
	}
	if len(values) == 0 {
		return nil
	}

	q := fmt.Sprintf("INSERT INTO %s (ts, kind, asset_id, symbol, name, price, score, reasons) VALUES %s",
		s.table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if s.l != nil {
			s.l.Error("signal archive insert error",
				applogger.String("table", s.table),
				applogger.Int("signals", len(values)),
				applogger.Error(err))
		}
		return fmt.Errorf("archive signals: %w", err)
	}
	return nil
}

func (s *ClickHouseSignalArchive) Query(ctx context.Context, symbol string, kind models.SignalKind, from, to time.Time, limit int) ([]models.ScoredSignal, error) {
	var (
		conds = []string{"ts >= ?", "ts <= ?"}
		args  = []interface{}{from, to}
	)
	if symbol != "" {
		conds = append(conds, "symbol = ?")
		args = append(args, symbol)
	}
	if kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(kind))
	}
	args = append(args, limit)

	q := fmt.Sprintf(
		"SELECT ts, kind, asset_id, symbol, name, price, score, reasons FROM %s WHERE %s ORDER BY ts DESC LIMIT ?",
		s.table, strings.Join(conds, " AND "))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("signal archive query error",
				applogger.String("table", s.table),
				applogger.String("symbol", symbol),
				applogger.Error(err))
		}
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	out := make([]models.ScoredSignal, 0, limit)
	for rows.Next() {
		var (
			sig     models.ScoredSignal
			kindRaw string
			reasons string
		)
		if err := rows.Scan(&sig.Timestamp, &kindRaw, &sig.AssetID, &sig.Symbol, &sig.Name, &sig.Price, &sig.Score, &reasons); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Kind = models.SignalKind(kindRaw)
		if reasons != "" {
			sig.Reasons = strings.Split(reasons, "; ")
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *ClickHouseSignalArchive) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSignalArchive) Close() error {
	return nil // pool owned by pkg client
}
