package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hive-corporation/phishwatch/internal/adapter/handler"
	"github.com/hive-corporation/phishwatch/internal/core/domain"
	"github.com/hive-corporation/phishwatch/internal/core/service"
)

func newRemoteCmd(root *rootOptions) *cobra.Command {
	var (
		server         string
		scoreOnly      bool
		sourceCount    int
		maliciousCount int
		lookupFailed   bool
		timeout        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "remote <url>",
		Short: "Assess a URL through a running phishwatch gRPC server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				rt, err := root.load(cmd)
				if err != nil {
					return err
				}
				server = rt.cfg.Server.GRPCAddr
			}

			conn, err := grpc.NewClient(server, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("error connecting to %s: %w", server, err)
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client := handler.NewScannerClient(conn)
			req := service.Request{
				URL:         args[0],
				SourceCount: sourceCount,
				Signals:     domain.ExternalSignals{MaliciousCount: maliciousCount, LookupFailed: lookupFailed},
			}

			var out map[string]interface{}
			if scoreOnly {
				out, err = client.Score(ctx, req)
			} else {
				out, err = client.Assess(ctx, req)
			}
			if err != nil {
				return fmt.Errorf("remote call failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "gRPC address (default from GRPC_LISTEN_ADDR)")
	cmd.Flags().BoolVar(&scoreOnly, "score", false, "Call Score instead of Assess")
	cmd.Flags().IntVar(&sourceCount, "source-count", 1, "Number of feeds that reported the URL")
	cmd.Flags().IntVar(&maliciousCount, "malicious-count", 0, "Reputation engines flagging the URL")
	cmd.Flags().BoolVar(&lookupFailed, "lookup-failed", false, "The reputation lookup failed")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Call timeout")
	return cmd
}
