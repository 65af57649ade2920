package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/hive-corporation/phishwatch/internal/adapter/handler"
	"github.com/hive-corporation/phishwatch/internal/bootstrap"
	"github.com/hive-corporation/phishwatch/internal/config"
	"github.com/hive-corporation/phishwatch/internal/logging"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		os.Stderr.WriteString("❌ Failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logging.New(cfg.Logging, "phishwatch-grpc")

	assessor, err := bootstrap.Assessor(cfg, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to build assessor")
	}

	// localhost by default, set GRPC_LISTEN_ADDR to expose it
	listenAddr := cfg.Server.GRPCAddr

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", listenAddr).Msg("failed to listen")
	}

	s := handler.NewServer(assessor, log)

	go func() {
		log.Info().Str("addr", listenAddr).Msg("🚀 Phishwatch gRPC API listening")
		if err := s.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("failed to serve")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	s.GracefulStop()
}
