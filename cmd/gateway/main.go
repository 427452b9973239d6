package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/logger"
)

func main() {
	cfgPath := flag.String("config", "configs/gateway.yaml", "config file, empty for defaults + env")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *cfgPath); err != nil {
		logger.L().Error("gateway exit", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}
