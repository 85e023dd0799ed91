package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mqttcore/dispatch"
)

var (
	runGroup     string
	runTopicID   string
	runTopic     string
	runSubs      []string
	runStrategy  string
	runMessages  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the supervisor against an in-memory log seeded with demo subscribers and messages",
	RunE:  runDispatch,
}

func init() {
	runCmd.Flags().StringVar(&runGroup, "group", "demo-group", "shared subscription group name")
	runCmd.Flags().StringVar(&runTopicID, "topic-id", "t1", "internal topic id")
	runCmd.Flags().StringVar(&runTopic, "topic", "sensors/temperature", "topic name put on delivered PUBLISH packets")
	runCmd.Flags().StringSliceVar(&runSubs, "subscribers", []string{"client-a", "client-b", "client-c"}, "subscriber client ids")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "round_robin", "dispatch strategy: round_robin, random, sticky, hash, local")
	runCmd.Flags().IntVar(&runMessages, "messages", 12, "number of demo messages to seed into the log")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	policy := dispatch.DefaultClusterPolicy()
	cfg := dispatch.DefaultDispatchConfig()
	if configPath != "" {
		var err error
		policy, cfg, err = dispatch.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}
	if runStrategy != "" {
		cfg.SharedSubscriptionStrategy = dispatch.SharedSubscriptionStrategy(runStrategy)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	subs := dispatch.NewSubscriptionManager()
	meta := dispatch.NewMetadataCache()
	acks := dispatch.NewAckManager()
	logs := dispatch.NewMemoryLogReader()
	egress := dispatch.NewEgress()

	key := dispatch.GroupKey{Group: runGroup, TopicID: runTopicID}
	for i, clientID := range runSubs {
		subs.AddSubscriber(key, runTopic, dispatch.SubscriberEntry{
			ClientID:        clientID,
			QoSRequest:      dispatch.ExactlyOnce,
			ProtocolVersion: 5,
		})
		meta.SetConnection(clientID, uint64(i+1))
	}

	records := make([]dispatch.Record, 0, runMessages)
	for i := 0; i < runMessages; i++ {
		records = append(records, dispatch.Record{
			Offset:  uint64(i),
			QoS:     dispatch.AtMostOnce,
			Payload: []byte(fmt.Sprintf("reading-%d", i)),
		})
	}
	logs.Append(runTopicID, records...)

	sup := dispatch.NewSupervisor(dispatch.SupervisorConfig{
		Policy:            policy,
		Subs:              subs,
		Metadata:          meta,
		Acks:              acks,
		Logs:              logs,
		Egress:            egress,
		StrategyName:      cfg.SharedSubscriptionStrategy,
		ReconcileInterval: cfg.ReconcileInterval,
		AckSweepInterval:  cfg.AckSweepInterval,
		AckTimeout:        cfg.AckTimeout,
		Logger:            logger,
	})
	sup.RegisterTopic(key, runTopic)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go drainEgress(ctx, egress, logger)

	logger.Info("dispatchd running", "group", runGroup, "topic", runTopic, "strategy", cfg.SharedSubscriptionStrategy)
	sup.Run(ctx)
	return nil
}

func drainEgress(ctx context.Context, egress *dispatch.Egress, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkg := <-egress.V5.Receive():
			logger.Info("delivered", "connection_id", pkg.ConnectionID, "packet_type", pkg.Packet.Type())
		case pkg := <-egress.V3.Receive():
			logger.Info("delivered", "connection_id", pkg.ConnectionID, "packet_type", pkg.Packet.Type())
		case <-time.After(2 * time.Second):
		}
	}
}
