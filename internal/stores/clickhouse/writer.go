package clickhouse

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"gitlab.com/nevasik7/alerting/logger"

	"traderboard/internal/config"
	"traderboard/internal/domain"
)

// RatingResultRow is one emitted rating result flattened for the
// rating_results table. The three bucket groups go in as JSON strings.
type RatingResultRow struct {
	ReportTime time.Time
	UserID     uint64
	Amount     float64
	WeekStart  time.Time
	Top        string
	Above      string
	Below      string
}

// NewRatingResultRow flattens a result for insertion. Marshal errors cannot
// happen for these value types, so the row is always usable.
func NewRatingResultRow(res *domain.RatingResult) RatingResultRow {
	top, _ := json.Marshal(res.Top)
	above, _ := json.Marshal(res.Above)
	below, _ := json.Marshal(res.Below)

	return RatingResultRow{
		ReportTime: res.TS,
		UserID:     uint64(res.UserID),
		Amount:     float64(res.Amount),
		WeekStart:  res.WeekStart,
		Top:        string(top),
		Above:      string(above),
		Below:      string(below),
	}
}

// Writer batches rating result rows into ClickHouse on a background
// goroutine. Inserts are retried with exponential backoff; a batch that
// still fails is dropped with an error log, the pipeline never blocks on it.
type Writer struct {
	log  logger.Logger
	conn ch.Conn
	cfg  config.ClickHouseConfig

	inCh      chan RatingResultRow
	closedCh  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWriter(log logger.Logger, conn ch.Conn, cfg config.ClickHouseConfig) *Writer {
	// sane defaults
	if cfg.Writer.BatchMaxRows <= 0 {
		cfg.Writer.BatchMaxRows = 1000
	}
	if cfg.Writer.BatchMaxInterval <= 0 {
		cfg.Writer.BatchMaxInterval = 200 * time.Millisecond
	}
	if cfg.Writer.MaxRetries < 0 {
		cfg.Writer.MaxRetries = 0
	}
	if cfg.Writer.RetryBackoff <= 0 {
		cfg.Writer.RetryBackoff = 200 * time.Millisecond
	}

	w := &Writer{
		log:      log,
		conn:     conn,
		cfg:      cfg,
		inCh:     make(chan RatingResultRow, 8192), // one reporting cycle for every connected user at peak
		closedCh: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	return w
}

func (w *Writer) Enqueue(row RatingResultRow) error {
	select {
	case <-w.closedCh:
		return errors.New("clickhouse writer closed")
	default:
	}

	select {
	case w.inCh <- row:
		return nil
	case <-w.closedCh:
		return errors.New("clickhouse writer closed")
	}
}

func (w *Writer) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		close(w.closedCh)
		close(w.inCh)
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) loop() {
	defer w.wg.Done()

	batch := make([]RatingResultRow, 0, w.cfg.Writer.BatchMaxRows)
	ticker := time.NewTicker(w.cfg.Writer.BatchMaxInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		if err := w.insertBatch(context.Background(), batch); err != nil {
			w.log.Errorf("Failed insert [%d] rating rows by batch to clickhouse, error=%v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case row, ok := <-w.inCh:
			if !ok {
				flush()
				return
			}

			batch = append(batch, row)
			if len(batch) >= w.cfg.Writer.BatchMaxRows {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (w *Writer) insertBatch(ctx context.Context, rows []RatingResultRow) error {
	backoff := w.cfg.Writer.RetryBackoff

	var lastErr error
	for attempt := 0; attempt <= w.cfg.Writer.MaxRetries; attempt++ {
		if lastErr = w.sendBatch(ctx, rows); lastErr == nil {
			return nil
		}

		if attempt < w.cfg.Writer.MaxRetries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	return lastErr
}

func (w *Writer) sendBatch(ctx context.Context, rows []RatingResultRow) error {
	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO rating_results (
			report_time,
			user_id,
			amount,
			week_start,
			top,
			above,
			below
		)
	`)
	if err != nil {
		return err
	}

	for i := range rows {
		r := &rows[i]
		if err = batch.Append(
			r.ReportTime,
			r.UserID,
			r.Amount,
			r.WeekStart,
			r.Top,
			r.Above,
			r.Below,
		); err != nil {
			_ = batch.Abort()
			return err
		}
	}

	return batch.Send()
}
