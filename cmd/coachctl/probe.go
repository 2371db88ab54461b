package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/echomind/coach-gateway/internal/analysis"
	"github.com/echomind/coach-gateway/internal/config"
	"github.com/echomind/coach-gateway/internal/observability"
	"github.com/echomind/coach-gateway/internal/probe"
)

func newProbeCmd() *cobra.Command {
	var (
		addr    string
		service string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Query a gateway's gRPC health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := probe.NewHealthClient(addr, nil, observability.GetLogger())
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			status, err := client.Check(ctx, service)
			if err != nil {
				return err
			}

			style := categoryStyles[analysis.CategorySuccess]
			if status != healthpb.HealthCheckResponse_SERVING {
				style = errorStyle
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", labelStyle.Render(addr), style.Render(status.String()))
			if status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("%s is %s", addr, status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.GetEnv("COACH_GRPC_ADDR", "localhost:9090"), "gateway gRPC health address")
	cmd.Flags().StringVar(&service, "service", observability.ServiceName, "service name to check")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "overall deadline")
	return cmd
}
