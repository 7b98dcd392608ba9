package pg

import (
	"context"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/suite"

	"github.com/dropDatabas3/portero/internal/domain/repository"
)

type StoreTestSuite struct {
	suite.Suite
	mock  pgxmock.PgxPoolIface
	store *Store
	ctx   context.Context
	now   time.Time
}

func (s *StoreTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	s.Require().NoError(err)
	s.mock = mock
	s.store = NewWithDB(mock)
	s.ctx = context.Background()
	s.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *StoreTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func q(sql string) string { return regexp.QuoteMeta(sql) }

var clientCols = []string{"id", "tenant_id", "client_id", "client_secret_hash", "name", "description",
	"allowed_scopes", "active", "rate_limit_override", "total_requests", "last_used_at", "created_at", "updated_at"}

func (s *StoreTestSuite) TestClientGetByClientID_WithOverride() {
	rows := pgxmock.NewRows(clientCols).AddRow(
		"c-uuid", "t-uuid", "client_abc", "$2a$10$hash", "ACME", "",
		[]string{"read:documents"}, true, []byte(`{"minute":5,"hour":50,"day":500}`),
		int64(7), (*time.Time)(nil), s.now, s.now,
	)
	s.mock.ExpectQuery(q("FROM oauth_clients WHERE client_id = $1")).
		WithArgs("client_abc").
		WillReturnRows(rows)

	c, err := s.store.Clients().GetByClientID(s.ctx, "client_abc")
	s.Require().NoError(err)
	s.Equal("c-uuid", c.ID)
	s.Equal([]string{"read:documents"}, c.AllowedScopes)
	s.Require().NotNil(c.RateOverride)
	s.Equal(repository.RateLimits{PerMinute: 5, PerHour: 50, PerDay: 500}, *c.RateOverride)
	s.Nil(c.LastUsedAt)
}

func (s *StoreTestSuite) TestClientGetByClientID_NotFound() {
	s.mock.ExpectQuery(q("FROM oauth_clients WHERE client_id = $1")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.store.Clients().GetByClientID(s.ctx, "missing")
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *StoreTestSuite) TestClientCreate_Conflict() {
	c := &repository.Client{ID: "c1", TenantID: "t1", ClientID: "client_dup", SecretHash: "h", Name: "dup", Active: true}
	s.mock.ExpectQuery(q("INSERT INTO oauth_clients")).
		WithArgs("c1", "t1", "client_dup", "h", "dup", "", pgxmock.AnyArg(), true, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.store.Clients().Create(s.ctx, c)
	s.ErrorIs(err, repository.ErrConflict)
}

func (s *StoreTestSuite) TestClientIncrementUsage() {
	s.mock.ExpectExec(q("SET total_requests = total_requests + 1")).
		WithArgs("c1", s.now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	s.NoError(s.store.Clients().IncrementUsage(s.ctx, "c1", s.now))
}

func (s *StoreTestSuite) TestTenantSetActive_NotFound() {
	s.mock.ExpectExec(q("UPDATE tenants SET active = $2 WHERE id = $1")).
		WithArgs("nope", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	s.ErrorIs(s.store.Tenants().SetActive(s.ctx, "nope", false), repository.ErrNotFound)
}

func (s *StoreTestSuite) TestTokenRevokeByID_ReportsSecondCall() {
	const sql = "UPDATE oauth_token_pairs SET revoked = TRUE, revoked_at = $2 WHERE id = $1 AND NOT revoked"
	s.mock.ExpectExec(q(sql)).WithArgs("p1", s.now).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	s.mock.ExpectExec(q(sql)).WithArgs("p1", s.now).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := s.store.Tokens().RevokeByID(s.ctx, "p1", s.now)
	s.NoError(err)
	s.True(ok)

	ok, err = s.store.Tokens().RevokeByID(s.ctx, "p1", s.now)
	s.NoError(err)
	s.False(ok)
}

func (s *StoreTestSuite) TestTokenRevokeAllByClient() {
	s.mock.ExpectExec(q("WHERE client_id = $1 AND NOT revoked")).
		WithArgs("c1", s.now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := s.store.Tokens().RevokeAllByClient(s.ctx, "c1", s.now)
	s.NoError(err)
	s.Equal(int64(3), n)
}

func (s *StoreTestSuite) TestTokenGetByRefreshHash() {
	cols := []string{"id", "client_id", "access_token_hash", "refresh_token_hash", "token_type", "scopes",
		"issued_at", "access_expires_at", "refresh_expires_at", "revoked", "revoked_at", "last_used_at"}
	revokedAt := s.now
	rows := pgxmock.NewRows(cols).AddRow("p1", "c1", "ah", "rh", "Bearer", []string{"read:files"},
		s.now, s.now.Add(time.Hour), s.now.Add(168*time.Hour), true, &revokedAt, (*time.Time)(nil))
	s.mock.ExpectQuery(q("WHERE refresh_token_hash = $1")).WithArgs("rh").WillReturnRows(rows)

	p, err := s.store.Tokens().GetByRefreshHash(s.ctx, "rh")
	s.Require().NoError(err)
	s.True(p.Revoked)
	s.Equal([]string{"read:files"}, p.Scopes)
	s.Equal(s.now.Add(time.Hour), p.AccessExpiresAt)
}

func (s *StoreTestSuite) TestTokenDeleteExpired() {
	s.mock.ExpectExec(q("DELETE FROM oauth_token_pairs WHERE refresh_expires_at < $1")).
		WithArgs(s.now).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.store.Tokens().DeleteExpired(s.ctx, s.now)
	s.NoError(err)
	s.Equal(int64(4), n)
}

func (s *StoreTestSuite) TestRequestLogStats() {
	rows := pgxmock.NewRows([]string{"count", "ok", "err", "rl", "avg"}).
		AddRow(int64(10), int64(7), int64(3), int64(2), float64(12.5))
	s.mock.ExpectQuery(q("FROM api_request_logs")).WithArgs("c1", s.now).WillReturnRows(rows)

	st, err := s.store.RequestLogs().StatsForClient(s.ctx, "c1", s.now)
	s.Require().NoError(err)
	s.Equal(int64(10), st.TotalRequests)
	s.Equal(int64(2), st.RateLimitedCount)
	s.InDelta(12.5, st.AvgResponseTimeMs, 0.001)
}

func (s *StoreTestSuite) TestMigrateAppliesPendingOnly() {
	fsys := fstest.MapFS{
		"0001_init_up.sql":   {Data: []byte("CREATE TABLE a (id int)")},
		"0001_init_down.sql": {Data: []byte("DROP TABLE a")},
		"0002_more_up.sql":   {Data: []byte("CREATE TABLE b (id int)")},
	}

	s.mock.ExpectExec(q("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	s.mock.ExpectQuery(q("SELECT EXISTS")).WithArgs("0001_init_up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	s.mock.ExpectQuery(q("SELECT EXISTS")).WithArgs("0002_more_up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	s.mock.ExpectBegin()
	s.mock.ExpectExec(q("CREATE TABLE b (id int)")).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	s.mock.ExpectExec(q("INSERT INTO schema_migrations")).WithArgs("0002_more_up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	s.mock.ExpectCommit()

	applied, err := s.store.Migrate(s.ctx, fsys)
	s.Require().NoError(err)
	s.Equal([]string{"0002_more_up.sql"}, applied)
}
