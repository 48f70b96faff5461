package main

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/slotengine/libs/grpcx"
	"github.com/md-rashed-zaman/slotengine/libs/httpx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

const availabilityHealthService = "slotengine.availability.v1.Availability"

// newHealthCmd checks that the availability service is serving before events are sent at it.
func newHealthCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the availability service's gRPC health status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, v.GetDuration("timeout"))
			defer cancel()

			res, err := checkHealth(ctx, v.GetString("grpc-addr"), v.GetString("service"))
			if err != nil {
				return err
			}
			fmt.Printf("status=%s request_id=%s\n", res.Status, res.RequestID)
			if res.Status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("service %q is %s", v.GetString("service"), res.Status)
			}
			return nil
		},
	}
	cmd.Flags().String("grpc-addr", "localhost:9095", "availability service gRPC address")
	cmd.Flags().String("service", availabilityHealthService, "health service name to check")
	cmd.Flags().Duration("timeout", 5*time.Second, "overall deadline")
	_ = v.BindPFlag("grpc-addr", cmd.Flags().Lookup("grpc-addr"))
	_ = v.BindPFlag("service", cmd.Flags().Lookup("service"))
	_ = v.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
	return cmd
}

type healthResult struct {
	Status    healthpb.HealthCheckResponse_ServingStatus
	RequestID string
}

// checkHealth tags the call with a fresh request id and reports the id the server echoed, so a
// failed check can be found in the service's logs.
func checkHealth(ctx context.Context, addr, service string) (healthResult, error) {
	conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
	if err != nil {
		return healthResult{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	ctx = httpx.ContextWithRequestID(ctx, httpx.NewRequestID())
	var header metadata.MD
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service}, grpc.Header(&header))
	if err != nil {
		return healthResult{}, fmt.Errorf("health check %s: %w", addr, err)
	}

	res := healthResult{Status: resp.GetStatus()}
	if ids := header.Get(grpcx.RequestIDMetadataKey); len(ids) > 0 {
		res.RequestID = ids[0]
	}
	return res, nil
}
