package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/eventhub/internal/client/backend"
	"github.com/mkrupp/eventhub/internal/client/lifecycle"
	"github.com/mkrupp/eventhub/internal/client/localstore"
	"github.com/mkrupp/eventhub/internal/client/signup"
	"github.com/mkrupp/eventhub/internal/infra/config"
	"github.com/mkrupp/eventhub/internal/infra/logging"
)

const (
	appName = "eventhub"
	svcName = "eventcli"
)

type Config struct {
	config.EnvConfig

	Log       logging.LoggerConfig         `envPrefix:"LOG_"`
	Backend   backend.Config               `envPrefix:"BACKEND_"`
	Store     localstore.SQLiteStoreConfig `envPrefix:"STORE_"`
	Signup    signup.Config                `envPrefix:"SIGNUP_"`
	Lifecycle lifecycle.Config             `envPrefix:"LIFECYCLE_"`
	Suspend   lifecycle.SuspendConfig      `envPrefix:"LIFECYCLE_"`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)

	a := newApp(cfg, os.Stdout)
	err := newRootCommand(a).ExecuteContext(ctx)

	if cerr := a.close(); cerr != nil {
		logging.GetLogger("cmd.eventcli").ErrorContext(ctx, "close failed", "error", cerr)
	}

	stop()

	if err != nil {
		os.Exit(1)
	}
}
