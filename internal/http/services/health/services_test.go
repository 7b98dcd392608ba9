package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	t.Parallel()

	s := NewHealthService(Deps{
		Service: "portero",
		Checks: map[string]Check{
			"storage":      func(context.Context) error { return nil },
			"rate_backend": func(context.Context) error { return errors.New("redis down") },
			"amqp":         nil,
		},
		Critical: []string{"storage"},
	})

	resp := s.Check(context.Background())
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ok", resp.Components["storage"].Status)
	assert.Equal(t, "error", resp.Components["rate_backend"].Status)
	assert.Equal(t, "disabled", resp.Components["amqp"].Status)

	s.deps.Critical = []string{"rate_backend"}
	assert.Equal(t, "degraded", s.Check(context.Background()).Status)
}
