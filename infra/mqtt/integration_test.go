package mqtt

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/elevfleet/core/model"
)

func startMosquitto(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "1883")
	require.NoError(t, err)
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func TestBrokerRoundTrip(t *testing.T) {
	broker := startMosquitto(t)

	var cli *PahoClient
	var err error
	for i := 0; i < 5; i++ {
		cli, err = NewPahoClient(Config{Broker: broker, ClientID: "elevfleet-it", QoS: map[string]byte{"command": 1, "heartbeat": 1}})
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	require.NoError(t, err)
	defer cli.Close()

	cmds := make(chan model.MovementCommand, 1)
	beats := make(chan model.Heartbeat, 1)
	require.NoError(t, cli.SubscribeCommands(func(_ context.Context, c model.MovementCommand) { cmds <- c }))
	require.NoError(t, cli.SubscribeHeartbeats(func(_ context.Context, hb model.Heartbeat) { beats <- hb }))

	ctx := context.Background()
	id, err := cli.PublishMove(ctx, 3, 8)
	require.NoError(t, err)
	require.NoError(t, cli.PublishHeartbeat(ctx, 3))

	select {
	case c := <-cmds:
		assert.Equal(t, id, c.CommandID)
		assert.Equal(t, 8, c.TargetFloor)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for command")
	}
	select {
	case hb := <-beats:
		assert.Equal(t, int64(3), hb.ElevatorID)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for heartbeat")
	}
}
