//go:build integration

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestAMQPPublisherDeliversToBoundQueue(t *testing.T) {
	ctx := context.Background()
	url := testutil.StartRabbit(ctx, t)

	pub, err := Connect(url, "talentstream.test", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	ch, err := conn.Channel()
	require.NoError(t, err)

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "attempt.*", "talentstream.test", false, nil))
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, RoutingAttemptCompleted, map[string]any{"score": 70.0}))

	select {
	case d := <-deliveries:
		require.Equal(t, RoutingAttemptCompleted, d.RoutingKey)
		require.Equal(t, "application/json", d.ContentType)
		var body map[string]any
		require.NoError(t, json.Unmarshal(d.Body, &body))
		require.InDelta(t, 70.0, body["score"], 1e-9)
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery")
	}
}
