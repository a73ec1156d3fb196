package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cogscreen-go/internal/archive"
	"cogscreen-go/internal/auth"
	"cogscreen-go/internal/config"
	logging "cogscreen-go/internal/logging"
	"cogscreen-go/internal/prediction"
	"cogscreen-go/internal/router"
	"cogscreen-go/internal/services"
	"cogscreen-go/internal/speech"
	"cogscreen-go/internal/tmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(projectRoot *string) *cobra.Command {
	var release bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the screening HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if release {
				gin.SetMode(gin.ReleaseMode)
			}
			return serve(cmd.Context(), *projectRoot)
		},
	}
	cmd.Flags().BoolVar(&release, "release", false, "run gin in release mode")
	return cmd
}

func serve(ctx context.Context, projectRoot string) error {
	console, err := loadConfig(projectRoot)
	if err != nil {
		return err
	}
	log, err := logging.Init(config.Conf.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()
	_ = console.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	closeDB, err := openDatabase(log, false)
	if err != nil {
		return err
	}
	defer closeDB()

	store, err := openStore(ctx, log)
	if err != nil {
		return err
	}
	defer store.Close()

	catalog, err := tmt.LoadCatalog(config.Conf.TMT.VariantsFile)
	if err != nil {
		return err
	}
	log.Info("Loaded trail making variants", zap.Strings("variants", catalog.IDs()))

	issuer, err := auth.NewIssuer(config.Conf.Auth.JWTSecret)
	if err != nil {
		return err
	}

	archiveStore, err := archive.Open(ctx, config.Conf.Archive)
	if err != nil {
		return err
	}
	if c, ok := archiveStore.(io.Closer); ok {
		defer c.Close()
	}

	srv := config.Conf.Server
	sessions := services.NewSessionRegistry(log, catalog, store, services.SessionConfig{
		EventRate:  srv.EventRate,
		EventBurst: srv.EventBurst,
		PersistDB:  config.Conf.Database.Enabled,
	})
	services.NewJanitor(log, sessions, srv.IdleTimeout).Start(ctx)

	r := router.Setup(log, router.Deps{
		Issuer:    issuer,
		Store:     store,
		Sessions:  sessions,
		Speech:    speech.New(config.Conf.Speech.URL, "", config.Conf.Speech.Timeout),
		Archive:   archiveStore,
		Predictor: prediction.NewClient(config.Conf.Prediction.URL, config.Conf.Prediction.Timeout),
	})

	server := &http.Server{
		Addr:              ":" + srv.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("Server listening on http://localhost:" + srv.Port)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
