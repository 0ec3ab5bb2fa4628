package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/cryptoverlay/pkg/models"
)

var f = models.Float

func sampleUpdate() models.Update {
	return models.Update{
		PassID:  "pass-1",
		Symbols: []string{"ETHUSDT", "BTCUSDT"},
		Result: models.AggregationResult{
			"ETHUSDT": {Symbol: "ETHUSDT", Price: f(3000), ChangePct: f(1.5)},
			"BTCUSDT": {Symbol: "BTCUSDT", Price: f(65000), ChangePct: f(-0.5), PremiumPct: f(2.1)},
		},
		StartedAt:   time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
		CompletedAt: time.Date(2024, 3, 15, 9, 30, 1, 0, time.UTC),
	}
}

// ── Postgres ──

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresWithDB(db), mock
}

func TestPostgresInitSchema(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS price_history").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, p.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveInsertsOneRowPerQuote(t *testing.T) {
	p, mock := newMockPostgres(t)
	u := sampleUpdate()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO price_history").
		WithArgs("pass-1", "ETHUSDT", 3000.0, 1.5, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO price_history").
		WithArgs("pass-1", "BTCUSDT", 65000.0, -0.5, 2.1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, p.Save(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveRollsBackOnError(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO price_history").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := p.Save(context.Background(), sampleUpdate())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert ETHUSDT")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveEmptyUpdate(t *testing.T) {
	p, mock := newMockPostgres(t)
	require.NoError(t, p.Save(context.Background(), models.Update{PassID: "empty"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecent(t *testing.T) {
	p, mock := newMockPostgres(t)
	at := time.Date(2024, 3, 15, 9, 30, 1, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"pass_id", "symbol", "price", "change_pct", "premium_pct", "recorded_at"}).
		AddRow("pass-2", "BTCUSDT", 65100.0, 0.2, nil, at).
		AddRow("pass-1", "BTCUSDT", nil, nil, nil, at.Add(-2*time.Second))
	mock.ExpectQuery("SELECT .+ FROM price_history").WithArgs("BTCUSDT", 2).WillReturnRows(rows)

	got, err := p.Recent(context.Background(), "BTCUSDT", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "pass-2", got[0].PassID)
	require.NotNil(t, got[0].Price)
	assert.Equal(t, 65100.0, *got[0].Price)
	assert.Nil(t, got[0].PremiumPct)
	assert.Nil(t, got[1].Price, "NULL price must stay absent")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ── Redis ──

func TestRedisKeys(t *testing.T) {
	r := NewRedisWithClient(nil, time.Minute, "")
	assert.Equal(t, "cryptoverlay:latest", r.latestKey())
	assert.Equal(t, "cryptoverlay:quote:BTCUSDT", r.quoteKey("BTCUSDT"))

	r = NewRedisWithClient(nil, -time.Second, "overlay")
	assert.Equal(t, "overlay:latest", r.latestKey())
	assert.Equal(t, time.Duration(0), r.ttl)
	assert.NoError(t, r.Close())
}

// ── Multi / Consumer ──

type fakeSink struct {
	name string
	err  error

	mu    sync.Mutex
	saved []string
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Save(_ context.Context, u models.Update) error {
	s.mu.Lock()
	s.saved = append(s.saved, u.PassID)
	s.mu.Unlock()
	return s.err
}

func (s *fakeSink) Close() error { return s.err }

func TestMultiSavesToAllSinks(t *testing.T) {
	ok := &fakeSink{name: "ok"}
	bad := &fakeSink{name: "bad", err: errors.New("unreachable")}
	m := NewMulti(ok, nil, bad)
	assert.Equal(t, 2, m.Len())

	err := m.Save(context.Background(), sampleUpdate())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: unreachable")
	assert.Equal(t, []string{"pass-1"}, ok.saved, "healthy sink still written")
	assert.Equal(t, []string{"pass-1"}, bad.saved)

	err = m.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestConsumerLogsFailures(t *testing.T) {
	log, hook := test.NewNullLogger()
	c := NewConsumer(&fakeSink{name: "bad", err: errors.New("boom")}, time.Second, log)

	c.OnUpdate(sampleUpdate())
	c.OnError("ignored")

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "bad", entry.Data["sink"])
	assert.Equal(t, "pass-1", entry.Data["pass_id"])
}
