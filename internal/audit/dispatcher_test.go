package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/portero/internal/domain/repository"
	"github.com/dropDatabas3/portero/internal/store/memory"
)

type recordingSink struct {
	mu   sync.Mutex
	got  []repository.APIRequestLog
	fail bool
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Write(_ context.Context, l *repository.APIRequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, *l)
	if s.fail {
		return errors.New("sink down")
	}
	return nil
}

func TestLogRequestFansOutEvenWhenOneSinkFails(t *testing.T) {
	t.Parallel()

	bad := &recordingSink{fail: true}
	good := &recordingSink{}
	d := New(Config{QueueSize: 8, Workers: 1}, Deps{Sinks: []Sink{bad, good}})

	d.LogRequest(repository.APIRequestLog{ClientID: "c", Status: 200})
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, bad.got, 1)
	require.Len(t, good.got, 1)
	assert.False(t, good.got[0].CreatedAt.IsZero())
}

func TestUsageAndTouchHitRepositories(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memory.New()
	c := &repository.Client{ClientID: "client_x"}
	require.NoError(t, st.Clients().Create(ctx, c))
	p := &repository.TokenPair{ClientID: c.ID, AccessTokenHash: "a", RefreshTokenHash: "r"}
	require.NoError(t, st.Tokens().Create(ctx, p))

	d := New(Config{Workers: 2}, Deps{Clients: st.Clients(), Tokens: st.Tokens()})
	now := time.Now()
	d.IncrementUsage(c.ID, now)
	d.IncrementUsage(c.ID, now)
	d.TouchToken(p.ID, now)
	// un id inexistente solo produce un log
	d.TouchToken("missing", now)
	require.NoError(t, d.Close(ctx))

	got, _ := st.Clients().GetByID(ctx, c.ID)
	assert.Equal(t, int64(2), got.TotalRequests)
	pair, _ := st.Tokens().GetByAccessHash(ctx, "a")
	require.NotNil(t, pair.LastUsedAt)
}

func TestSubmitNeverBlocks(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	d := New(Config{QueueSize: 1, Workers: 1}, Deps{})

	// ocupa el worker y llena la cola
	require.True(t, d.Submit("block", func(context.Context) error { <-release; return nil }))
	deadline := time.Now().Add(time.Second)
	for len(d.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.True(t, d.Submit("fill", func(context.Context) error { return nil }))

	start := time.Now()
	assert.False(t, d.Submit("dropped", func(context.Context) error { return nil }))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	require.NoError(t, d.Close(context.Background()))
	assert.False(t, d.Submit("after-close", func(context.Context) error { return nil }))
}

func TestPanicsAreContained(t *testing.T) {
	t.Parallel()

	var ran atomic.Int32
	d := New(Config{Workers: 1}, Deps{})
	d.Submit("boom", func(context.Context) error { panic("x") })
	d.Submit("next", func(context.Context) error { ran.Add(1); return nil })
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(1), ran.Load())
}

type fakePublisher struct {
	exchange, key string
	msg           amqp.Publishing
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func TestAMQPSinkPublishesJSON(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	s := &AMQPSink{Pub: pub, Exchange: "portero.audit", RoutingKey: "api.request"}
	l := &repository.APIRequestLog{ClientID: "c", Endpoint: "/api/v1/ping", Status: 429, RateLimitHit: true, CreatedAt: time.Now()}
	require.NoError(t, s.Write(context.Background(), l))

	assert.Equal(t, "portero.audit", pub.exchange)
	assert.Equal(t, "api.request", pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)

	var decoded repository.APIRequestLog
	require.NoError(t, json.Unmarshal(pub.msg.Body, &decoded))
	assert.True(t, decoded.RateLimitHit)
	assert.Equal(t, "/api/v1/ping", decoded.Endpoint)
}

func TestRepoSink(t *testing.T) {
	t.Parallel()

	st := memory.New()
	s := RepoSink{Repo: st.RequestLogs()}
	require.NoError(t, s.Write(context.Background(), &repository.APIRequestLog{ClientID: "c", Status: 200}))

	stats, err := st.RequestLogs().StatsForClient(context.Background(), "c", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalRequests)
}
