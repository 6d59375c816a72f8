package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/elevfleet/infra/mqtt"
)

var (
	pubCar   int64
	pubFloor int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Queue a stepwise move of a car on the broker",
	RunE:  runSimulate,
}

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Send a heartbeat on behalf of a car",
	RunE:  runHeartbeat,
}

func init() {
	simulateCmd.Flags().Int64Var(&pubCar, "car", 0, "car id")
	simulateCmd.Flags().IntVar(&pubFloor, "floor", 0, "target floor")
	_ = simulateCmd.MarkFlagRequired("car")
	_ = simulateCmd.MarkFlagRequired("floor")
	heartbeatCmd.Flags().Int64Var(&pubCar, "car", 0, "car id")
	_ = heartbeatCmd.MarkFlagRequired("car")
	rootCmd.AddCommand(simulateCmd, heartbeatCmd)
}

func brokerClient() (*mqtt.PahoClient, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.MQTT.Broker == "" {
		return nil, errors.New("mqtt broker not configured")
	}
	mc := cfg.MQTT
	mc.ClientID = fmt.Sprintf("elevfleet-cli-%d", time.Now().UnixNano())
	return mqtt.NewPahoClient(mc)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	client, err := brokerClient()
	if err != nil {
		return err
	}
	defer closeQuietly(cmd, client.Close)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	id, err := client.PublishMove(ctx, pubCar, pubFloor)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runHeartbeat(cmd *cobra.Command, args []string) error {
	client, err := brokerClient()
	if err != nil {
		return err
	}
	defer closeQuietly(cmd, client.Close)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	return client.PublishHeartbeat(ctx, pubCar)
}
