//go:build integration

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupNATSContainer(t *testing.T, ctx context.Context) (*nats.Conn, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "nats:2.10-alpine",
		ExposedPorts: []string{"4222/tcp"},
		Cmd:          []string{"-js"},
		WaitingFor:   wait.ForLog("Server is ready"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	nc, err := nats.Connect(fmt.Sprintf("nats://%s:%s", host, port.Port()))
	require.NoError(t, err)

	cleanup := func() {
		nc.Close()
		_ = container.Terminate(ctx)
	}

	return nc, cleanup
}

func TestIntegration_JetStreamPublisher(t *testing.T) {
	ctx := context.Background()
	nc, cleanup := setupNATSContainer(t, ctx)
	defer cleanup()

	pub, err := NewJetStreamPublisher(ctx, nc, JetStreamConfig{})
	require.NoError(t, err)

	event := New(AssetAddressChanged, "acme", "p-1")
	require.NoError(t, pub.Publish(ctx, event))
	// duplicate message IDs are dropped by the stream
	require.NoError(t, pub.Publish(ctx, event))

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	stream, err := js.Stream(ctx, "ASSETTRACK_EVENTS")
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), info.State.Msgs)

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: "assettrack.acme.>",
	})
	require.NoError(t, err)

	msg, err := consumer.Next(jetstream.FetchMaxWait(5 * time.Second))
	require.NoError(t, err)
	require.Equal(t, "assettrack.acme.asset-address-changed", msg.Subject())

	var got Event
	require.NoError(t, json.Unmarshal(msg.Data(), &got))
	require.Equal(t, event.ID, got.ID)
	require.Equal(t, "p-1", got.EntityID)
}
