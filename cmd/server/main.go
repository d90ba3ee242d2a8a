package main

import (
	"context"
	"os"

	"go.uber.org/fx"

	"github.com/netdocs/ragserver/internal/app"
	"github.com/netdocs/ragserver/internal/logger"
)

func main() {
	fxApp := fx.New(
		app.InfrastructureModule,
		app.ClientsModule,
		app.ServicesModule,
		app.HTTPServerModule,
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()

	if err := fxApp.Start(startCtx); err != nil {
		logger.Get().Error("application startup failed", "error", err)
		os.Exit(1)
	}

	<-fxApp.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer stopCancel()

	if err := fxApp.Stop(stopCtx); err != nil {
		logger.Get().Error("application shutdown failed", "error", err)
	}
}
