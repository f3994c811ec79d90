package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/mkrupp/eventhub/internal/channel/wshub"
	"github.com/mkrupp/eventhub/internal/infra/config"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	"github.com/mkrupp/eventhub/internal/infra/transport/http"
	"github.com/mkrupp/eventhub/internal/repo/account"
	"github.com/mkrupp/eventhub/internal/repo/blob"
	"github.com/mkrupp/eventhub/internal/repo/event"
	"github.com/mkrupp/eventhub/internal/repo/municipality"
	"github.com/mkrupp/eventhub/internal/repo/profile"
	"github.com/mkrupp/eventhub/internal/svc/authsvc"
	"github.com/mkrupp/eventhub/internal/svc/citysvc"
	"github.com/mkrupp/eventhub/internal/svc/eventsvc"
	"github.com/mkrupp/eventhub/internal/svc/imagesvc"
	"github.com/mkrupp/eventhub/internal/svc/mediasvc"
	"github.com/mkrupp/eventhub/internal/svc/profilesvc"
)

const (
	appName = "eventhub"
	svcName = "eventsvc"
)

type Config struct {
	config.EnvConfig

	Log          logging.LoggerConfig                            `envPrefix:"LOG_"`
	HTTP         http.HTTPTransportConfig                        `envPrefix:"HTTP_"`
	Auth         authsvc.AuthConfig                              `envPrefix:"AUTH_"`
	Account      account.SQLiteAccountRepositoryConfig           `envPrefix:"ACCOUNT_"`
	Profile      profilesvc.ProfileConfig                        `envPrefix:"PROFILE_"`
	ProfileRepo  profile.SQLiteProfileRepositoryConfig           `envPrefix:"PROFILE_REPO_"`
	Event        event.SQLiteEventRepositoryConfig               `envPrefix:"EVENT_"`
	Municipality municipality.SQLiteMunicipalityRepositoryConfig `envPrefix:"MUNICIPALITY_"`
	Media        mediasvc.MediaConfig                            `envPrefix:"MEDIA_"`
	Image        imagesvc.ImageConfig                            `envPrefix:"IMAGE_"`
	ImageHTTP    imagesvc.HTTPTransportConfig                    `envPrefix:"IMAGE_HTTP_"`
	Blob         blob.FileSystemBlobRepositoryConfig             `envPrefix:"BLOB_"`
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
	defer stop()

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	defer func() {
		log := logging.GetLogger("cmd.eventsvc")

		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
			panic(err)
		}

		log.InfoContext(ctx, "shutdown")
	}()

	authSvc, err := authsvc.NewAuthService(ctx, account.SQLiteAccountRepositoryFactory(cfg.Account), nil, cfg.Auth)
	if err != nil {
		return fmt.Errorf("new auth service: %w", err)
	}
	defer func() { err = errors.Join(err, authSvc.Close()) }()

	mediaSvc, err := mediasvc.NewBlobMediaService(ctx, blob.FileSystemBlobRepositoryFactory(cfg.Blob), cfg.Media)
	if err != nil {
		return fmt.Errorf("new media service: %w", err)
	}

	imageSvc, err := imagesvc.NewBlobImageService(ctx, blob.FileSystemBlobRepositoryFactory(cfg.Blob), mediaSvc, cfg.Image)
	if err != nil {
		return fmt.Errorf("new image service: %w", err)
	}

	profileSvc, err := profilesvc.NewProfileService(
		ctx,
		profile.SQLiteProfileRepositoryFactory(cfg.ProfileRepo),
		imageSvc,
		cfg.Profile,
	)
	if err != nil {
		return fmt.Errorf("new profile service: %w", err)
	}
	defer func() { err = errors.Join(err, profileSvc.Close()) }()

	citySvc, err := citysvc.NewCityService(ctx, municipality.SQLiteMunicipalityRepositoryFactory(cfg.Municipality))
	if err != nil {
		return fmt.Errorf("new city service: %w", err)
	}
	defer func() { err = errors.Join(err, citySvc.Close()) }()

	eventSvc, err := eventsvc.NewEventService(ctx, event.SQLiteEventRepositoryFactory(cfg.Event), profileSvc, citySvc)
	if err != nil {
		return fmt.Errorf("new event service: %w", err)
	}
	defer func() { err = errors.Join(err, eventSvc.Close()) }()

	router := mux.NewRouter()
	authsvc.NewHTTPTransport(authSvc).Register(router)
	profilesvc.NewHTTPTransport(profileSvc, authSvc).Register(router)
	eventsvc.NewHTTPTransport(eventSvc, authSvc).Register(router)
	citysvc.NewHTTPTransport(citySvc).Register(router)
	imagesvc.NewHTTPTransport(imageSvc, authSvc, cfg.ImageHTTP).Register(router)
	wshub.NewServer().Register(router)

	if err := http.ListenAndServe(ctx, router, cfg.HTTP); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
