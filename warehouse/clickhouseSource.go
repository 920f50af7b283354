package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/feedwatch/metrics-alerting/common"
	"github.com/feedwatch/metrics-alerting/config"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("warehouse")

const dateLayout = "2006-01-02"

// snapshotQuery aggregates the trailing day of raw feed and message actions
// into 15-minute buckets, one row per bucket up to "now rounded down to the
// current bucket". CTR is derived from likes/views at query time
const snapshotQuery = `
	WITH feed AS (
		SELECT
			toStartOfFifteenMinutes(time) AS ts,
			toDate(time) AS date,
			formatDateTime(toStartOfFifteenMinutes(time), '%R') AS hm,
			uniqExact(user_id) AS users_feed,
			countIf(action = 'view') AS views,
			countIf(action = 'like') AS likes
		FROM feed_actions
		WHERE time >= today() - 1 AND time < toStartOfFifteenMinutes(now())
		GROUP BY ts, date, hm
	),
	msg AS (
		SELECT
			toStartOfFifteenMinutes(time) AS ts,
			uniqExact(user_id) AS users_message,
			count(user_id) AS messages
		FROM message_actions
		WHERE time >= today() - 1 AND time < toStartOfFifteenMinutes(now())
		GROUP BY ts
	)
	SELECT
		feed.ts, feed.date, feed.hm,
		feed.users_feed, feed.views, feed.likes,
		round(feed.likes / feed.views, 2) AS ctr,
		msg.users_message, msg.messages
	FROM feed LEFT JOIN msg ON feed.ts = msg.ts
	ORDER BY feed.ts`

// bucketRow mirrors one row of the snapshot query
type bucketRow struct {
	ts           time.Time
	date         time.Time
	hm           string
	usersFeed    uint64
	views        uint64
	likes        uint64
	ctr          float64
	usersMessage uint64
	messages     uint64
}

// clickhouseSource fetches the aggregated metrics snapshot from ClickHouse
type clickhouseSource struct {
	db *sql.DB
}

// NewClickhouseSource opens a connection pool towards the configured warehouse.
// The connection itself is established lazily on the first fetch
func NewClickhouseSource(cfg config.WarehouseConfig, user string, password string) (*clickhouseSource, error) {
	if len(cfg.Addr) == 0 {
		return nil, fmt.Errorf("empty warehouse address")
	}

	dsn := buildDSN(cfg, user, password)
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse connection: %w", err)
	}

	return &clickhouseSource{
		db: db,
	}, nil
}

func buildDSN(cfg config.WarehouseConfig, user string, password string) string {
	dialTimeout := cfg.DialTimeoutInSeconds
	if dialTimeout == 0 {
		dialTimeout = 10
	}

	return fmt.Sprintf("clickhouse://%s:%s@%s/%s?dial_timeout=%ds",
		url.QueryEscape(user), url.QueryEscape(password), cfg.Addr, cfg.Database, dialTimeout)
}

// FetchSnapshot runs the snapshot query and converts the rows into buckets.
// Zero rows yield ErrNoData so the run loop can retry instead of evaluating an
// empty dataset
func (s *clickhouseSource) FetchSnapshot(ctx context.Context) (common.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, snapshotQuery)
	if err != nil {
		return common.Snapshot{}, fmt.Errorf("snapshot query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	fetched := make([]bucketRow, 0)
	for rows.Next() {
		var row bucketRow
		err = rows.Scan(&row.ts, &row.date, &row.hm,
			&row.usersFeed, &row.views, &row.likes,
			&row.ctr, &row.usersMessage, &row.messages)
		if err != nil {
			return common.Snapshot{}, fmt.Errorf("failed to scan snapshot row: %w", err)
		}

		fetched = append(fetched, row)
	}
	if rows.Err() != nil {
		return common.Snapshot{}, fmt.Errorf("failed to read snapshot rows: %w", rows.Err())
	}

	if len(fetched) == 0 {
		return common.Snapshot{}, ErrNoData
	}

	snapshot := buildSnapshot(fetched)
	log.Debug("fetched metrics snapshot", "buckets", len(snapshot.Buckets))

	return snapshot, nil
}

func buildSnapshot(fetched []bucketRow) common.Snapshot {
	snapshot := common.Snapshot{
		Buckets: make([]common.Bucket, 0, len(fetched)),
	}

	for _, row := range fetched {
		snapshot.Buckets = append(snapshot.Buckets, common.Bucket{
			Timestamp: row.ts,
			Date:      row.date.Format(dateLayout),
			TimeLabel: row.hm,
			Values: map[string]float64{
				"users_feed":    float64(row.usersFeed),
				"views":         float64(row.views),
				"likes":         float64(row.likes),
				"ctr":           row.ctr,
				"users_message": float64(row.usersMessage),
				"messages":      float64(row.messages),
			},
		})
	}

	return snapshot
}

// Close closes the underlying connection pool
func (s *clickhouseSource) Close() error {
	return s.db.Close()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *clickhouseSource) IsInterfaceNil() bool {
	return s == nil
}
