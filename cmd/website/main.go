package main

import (
	"context"
	"embed"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/mux"
	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/photogallery/cmd/website/internal/albums"
	"github.com/adampresley/photogallery/cmd/website/internal/configuration"
	"github.com/adampresley/photogallery/cmd/website/internal/home"
	"github.com/adampresley/photogallery/cmd/website/internal/orphans"
	"github.com/adampresley/photogallery/cmd/website/internal/revalidation"
	"github.com/adampresley/photogallery/cmd/website/internal/uploads"
	"github.com/adampresley/photogallery/pkg/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Version string = "development"
	appName string = "photogallery"

	//go:embed app
	appFS embed.FS

	config configuration.Config

	/* Services */
	authService         services.AuthorizationServicer
	brokerService       services.UploadBrokerServicer
	catalogService      services.CatalogServicer
	orphanSweeper       orphans.OrphanSweeper
	providerService     services.ImageProviderServicer
	recorderService     services.PhotoRecorderServicer
	renderer            rendering.TemplateRenderer
	revalidationService services.RevalidationService

	/* Controllers */
	albumsController       albums.AlbumsHandlers
	homeController         home.HomeHandlers
	revalidationController revalidation.RevalidationHandlers
	uploadsController      uploads.UploadsHandlers
)

func main() {
	var (
		err          error
		catalogStore services.CatalogStore
	)

	config = configuration.LoadConfig()
	setupLogger(&config, Version)

	slog.Info("configuration loaded",
		slog.String("app", appName),
		slog.String("version", Version),
		slog.String("loglevel", config.LogLevel),
		slog.String("host", config.Host),
		slog.String("storeDriver", config.StoreDriver),
		slog.String("orphanSweepMode", config.OrphanSweepMode),
		slog.Bool("providerConfigured", config.CloudflareAccountID != "" && config.CloudflareImagesToken != ""),
	)

	slog.Debug("setting up...")

	shutdownCtx, cancel := context.WithCancel(context.Background())

	/*
	 * Setup services
	 */
	if catalogStore, err = setupCatalogStore(shutdownCtx); err != nil {
		panic(err)
	}

	renderer, err = rendering.NewGoTemplateRenderer(rendering.GoTemplateRendererConfig{
		TemplateDir:       "app",
		TemplateExtension: ".html",
		TemplateFS:        appFS,
		PagesDir:          "pages",
	})

	if err != nil {
		panic(err)
	}

	authService = services.NewAuthorizationService(services.AuthorizationServiceConfig{
		ServiceToken:            config.UploadAPIToken,
		DelegatedIdentityHeader: config.DelegatedIdentityHeader,
	})

	catalogService = services.NewCatalogService(services.CatalogServiceConfig{
		Store: catalogStore,
	})

	providerService = services.NewImageProviderService(services.ImageProviderServiceConfig{
		AccountID:  config.CloudflareAccountID,
		APIToken:   config.CloudflareImagesToken,
		BaseURL:    config.ProviderBaseURL,
		MaxRetries: uint64(max(config.ProviderMaxRetries, 0)),
		Timeout:    time.Duration(config.ProviderTimeoutSeconds) * time.Second,
	})

	brokerService = services.NewUploadBrokerService(services.UploadBrokerServiceConfig{
		Provider: providerService,
	})

	revalidationService = services.NewRevalidationService(services.RevalidationServiceConfig{
		Token:       config.RevalidateToken,
		SiteBaseURL: config.SiteBaseURL,
	})

	recorderConfig := services.PhotoRecorderServiceConfig{
		Catalog: catalogService,
	}

	if config.RevalidateToken != "" && config.SiteBaseURL != "" {
		recorderConfig.Notifier = revalidationService
	}

	recorderService = services.NewPhotoRecorderService(recorderConfig)

	orphanSweeper = orphans.NewOrphanSweeperService(orphans.OrphanSweeperConfig{
		CatalogService:  catalogService,
		Provider:        providerService,
		Mode:            strings.ToLower(config.OrphanSweepMode),
		GracePeriod:     time.Duration(config.OrphanGraceHours) * time.Hour,
		MaxSweepWorkers: config.MaxSweepWorkers,
		ShutdownCtx:     shutdownCtx,
	})

	/*
	 * Setup controllers
	 */
	albumsController = albums.NewAlbumsController(albums.AlbumsControllerConfig{
		CatalogService: catalogService,
		SiteBaseURL:    config.SiteBaseURL,
	})

	homeController = home.NewHomeController(home.HomeControllerConfig{
		CatalogService:      catalogService,
		DeliveryBaseURL:     config.ImageDeliveryBaseURL,
		DeliveryAccountHash: config.ImageDeliveryAccountHash,
		Renderer:            renderer,
	})

	revalidationController = revalidation.NewRevalidationController(revalidation.RevalidationControllerConfig{
		RevalidationService: revalidationService,
	})

	uploadsController = uploads.NewUploadsController(uploads.UploadsControllerConfig{
		BrokerService:   brokerService,
		RecorderService: recorderService,
	})

	/*
	 * Setup router and http server
	 */
	slog.Debug("setting up routes...")

	uploadAuthMiddleware := newUploadAuthMiddleware(authService)
	securityHeadersMiddleware := newSecurityHeadersMiddleware(config.ImageDeliveryBaseURL)

	routes := withCommonMiddlewares([]mux.Route{
		{Path: "GET /heartbeat", HandlerFunc: heartbeat},
		{Path: "GET /metrics", HandlerFunc: promhttp.Handler().ServeHTTP},
		{Path: "GET /albums", HandlerFunc: albumsController.ListAlbums},
		{Path: "GET /sitemap.xml", HandlerFunc: albumsController.Sitemap},
		{Path: "POST /signed-upload", HandlerFunc: uploadsController.SignedUpload, Middlewares: []mux.MiddlewareFunc{uploadAuthMiddleware}},
		{Path: "POST /photos", HandlerFunc: uploadsController.RecordPhoto, Middlewares: []mux.MiddlewareFunc{uploadAuthMiddleware}},
		{Path: "POST /revalidate", HandlerFunc: revalidationController.Revalidate},
		{Path: "GET /{$}", HandlerFunc: homeController.HomePage},
		{Path: "GET /{album}", HandlerFunc: homeController.AlbumPage},
	}, securityHeadersMiddleware)

	routerConfig := mux.RouterConfig{
		Address:              config.Host,
		Debug:                Version == "development",
		ServeStaticContent:   true,
		StaticContentRootDir: "app",
		StaticContentPrefix:  "/static/",
		StaticFS:             appFS,
		HttpWriteTimeout:     60,
	}

	m := mux.SetupRouter(routerConfig, routes)
	httpServer, quit := mux.SetupServer(routerConfig, m)

	/*
	 * Start the orphan sweep job
	 */
	if orphanSweepEnabled() {
		setupOrphanSweeper(shutdownCtx, time.Duration(config.OrphanSweepIntervalMinutes)*time.Minute)
	}

	/*
	 * Wait for graceful shutdown
	 */
	slog.Info("server started")

	<-quit

	cancel()
	mux.Shutdown(httpServer)
	slog.Info("server stopped")
}

func heartbeat(w http.ResponseWriter, r *http.Request) {
	httphelpers.TextOK(w, "OK")
}

/*
setupCatalogStore opens the configured backend. The sqlite backend is
seeded from the JSON files the first time it starts with empty tables.
*/
func setupCatalogStore(ctx context.Context) (services.CatalogStore, error) {
	jsonStore, err := services.NewJSONCatalogStore(services.JSONCatalogStoreConfig{
		DataDir: config.DataDir,
	})

	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(config.StoreDriver, "sqlite") {
		return jsonStore, nil
	}

	db, err := services.ConnectSQLite(config.DSN)

	if err != nil {
		return nil, err
	}

	if err = services.MigrateDatabase(db); err != nil {
		return nil, err
	}

	sqlStore := services.NewSQLCatalogStore(services.SQLCatalogStoreConfig{
		DB: db,
	})

	if err = sqlStore.SeedFromJSON(ctx, jsonStore); err != nil {
		return nil, err
	}

	return sqlStore, nil
}

func orphanSweepEnabled() bool {
	mode := strings.ToLower(config.OrphanSweepMode)

	if mode != orphans.ModeReport && mode != orphans.ModeDelete {
		return false
	}

	if !providerService.Configured() {
		slog.Warn("orphan sweep disabled because the image provider is not configured")
		return false
	}

	return true
}

/*
setupOrphanSweeper runs a sweep right away and then on every tick until
shutdown. A tick that fires during a long sweep is dropped by the ticker.
*/
func setupOrphanSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		runner := func() {
			result, err := orphanSweeper.Sweep()

			if err != nil {
				slog.Error("orphan sweep failed", "error", err)
				return
			}

			slog.Info("orphan sweep finished.", "scanned", result.Scanned, "orphaned", len(result.Orphaned), "deleted", result.Deleted)
		}

		runner()

		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				runner()
			}
		}
	}()
}

func setupLogger(config *configuration.Config, version string) {
	var (
		handler slog.Handler
	)

	level := slog.LevelDebug

	switch strings.ToLower(config.LogLevel) {
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	options := &slog.HandlerOptions{Level: level}

	if version == "development" {
		handler = slog.NewTextHandler(os.Stdout, options)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, options)
	}

	slog.SetDefault(slog.New(handler).With("app", appName, "version", version))
}
