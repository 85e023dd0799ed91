package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mqttcore/dispatch"
)

var seedCmd = &cobra.Command{
	Use:   "policy",
	Short: "Load (or default) the cluster policy and round-trip it through the wire encoding",
	RunE:  runPolicy,
}

func runPolicy(cmd *cobra.Command, args []string) error {
	policy := dispatch.DefaultClusterPolicy()
	if configPath != "" {
		var err error
		policy, _, err = dispatch.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}

	data, err := policy.Encode()
	if err != nil {
		return fmt.Errorf("policy: encode: %w", err)
	}
	decoded, err := dispatch.DecodeClusterPolicy(data)
	if err != nil {
		return fmt.Errorf("policy: decode: %w", err)
	}

	fmt.Printf("encoded %d bytes\n", len(data))
	fmt.Printf("max_qos=%d retain_available=%s shared_sub=%s send_max_try_times=%d\n",
		decoded.MaxQoS, decoded.RetainAvailable, decoded.SharedSub, decoded.SendMaxTryTimes)
	return nil
}
