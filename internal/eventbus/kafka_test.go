package eventbus

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"finyx/internal/progress"
)

func TestNewPublisher_ReturnsNilWhenUnconfigured(t *testing.T) {
	t.Parallel()
	require.Nil(t, NewPublisher(nil, "progress", zerolog.Nop()))
	require.Nil(t, NewPublisher([]string{"localhost:9092"}, "", zerolog.Nop()))
}

func TestNilPublisher_MethodsAreNoOps(t *testing.T) {
	t.Parallel()
	var p *Publisher
	p.Publish(context.Background(), "tx1", "sess1", progress.Event{})
	p.PublishAll(context.Background(), "tx1", "sess1", []progress.Event{{}}, 0)
	require.NoError(t, p.Close())
}
