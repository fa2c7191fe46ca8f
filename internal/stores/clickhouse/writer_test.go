package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"

	"traderboard/internal/config"
	"traderboard/internal/domain"
)

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{
		Level:  "error",
		Format: "json",
	})
}

func TestNewRatingResultRow(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 8, 12, 1, 0, 0, time.Local)
	weekStart := time.Date(2024, 1, 8, 0, 0, 0, 0, time.Local)

	row := NewRatingResultRow(&domain.RatingResult{
		TS:        ts,
		WeekStart: weekStart,
		UserID:    10,
		Amount:    30,
		Top: []domain.RatingBucket{
			{Amount: 30, Users: []domain.UserID{10}},
		},
		Above: []domain.RatingBucket{},
		Below: []domain.RatingBucket{
			{Amount: 5.2, Users: []domain.UserID{2}},
		},
	})

	assert.Equal(t, ts, row.ReportTime)
	assert.Equal(t, weekStart, row.WeekStart)
	assert.Equal(t, uint64(10), row.UserID)
	assert.Equal(t, float64(30), row.Amount)
	assert.JSONEq(t, `[{"amount":30,"users":[10]}]`, row.Top)
	assert.JSONEq(t, `[]`, row.Above)
	assert.JSONEq(t, `[{"amount":5.2,"users":[2]}]`, row.Below)
}

func TestWriter_EnqueueAfterClose(t *testing.T) {
	t.Parallel()

	w := NewWriter(newTestLogger(), nil, config.ClickHouseConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Close(ctx))

	assert.Error(t, w.Enqueue(RatingResultRow{}))
}

func TestWriter_CloseIdempotent(t *testing.T) {
	t.Parallel()

	w := NewWriter(newTestLogger(), nil, config.ClickHouseConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, w.Close(ctx))
	require.NoError(t, w.Close(ctx))
}
