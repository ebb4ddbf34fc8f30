package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lessonforge/lessonforge/internal/blocks"
	"github.com/lessonforge/lessonforge/internal/config"
	"github.com/lessonforge/lessonforge/internal/content"
	"github.com/lessonforge/lessonforge/internal/database"
	"github.com/lessonforge/lessonforge/internal/logging"
	"github.com/lessonforge/lessonforge/internal/persist"
	"github.com/lessonforge/lessonforge/internal/render"
	"github.com/lessonforge/lessonforge/internal/server"
	"github.com/lessonforge/lessonforge/internal/storage"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lessonforge-api",
		Short: "LessonForge authoring backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("redis-address", defaults.GetString("redis.address"), "Redis connection URL")
	cmd.PersistentFlags().String("storage-backend", defaults.GetString("storage.backend"), "Storage backend (sqlite, redis)")
	cmd.PersistentFlags().Int("save-debounce-ms", defaults.GetInt("save.debounce_ms"), "Save debounce window in milliseconds")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "redis.address", "redis-address")
	bindFlag(cmd, "storage.backend", "storage-backend")
	bindFlag(cmd, "save.debounce_ms", "save-debounce-ms")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

type lessonStore interface {
	persist.BlockStore
	server.LessonLoader
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	var store lessonStore
	switch appConfig.StorageBackend {
	case config.StorageBackendSQLite:
		db, openErr := database.OpenSQLite(appConfig.DatabasePath, logger)
		if openErr != nil {
			return openErr
		}
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return dbErr
		}
		defer sqlDB.Close()

		store, err = storage.NewSQLiteStore(storage.SQLiteStoreConfig{Database: db, Logger: logger})
		if err != nil {
			return err
		}
	case config.StorageBackendRedis:
		redisStore, redisErr := storage.NewRedisStore(appConfig.RedisAddress)
		if redisErr != nil {
			return redisErr
		}
		defer redisStore.Close()
		store = redisStore
	default:
		return fmt.Errorf("unsupported storage backend %q", appConfig.StorageBackend)
	}

	realtime := server.NewRealtimeDispatcher()

	driver, err := persist.NewDriver(persist.DriverConfig{
		Store:        store,
		Synchronizer: blocks.NewSynchronizer(blocks.SynchronizerConfig{}),
		Logger:       logger,
		Debounce:     appConfig.SaveDebounce,
		OnSave: func(scopeID, lessonID, title string, blockIDs []string) {
			realtime.Publish(server.RealtimeMessage{
				ScopeID:   scopeID,
				LessonID:  lessonID,
				EventType: server.RealtimeEventLessonSaved,
				BlockIDs:  blockIDs,
				Timestamp: time.Now().UTC(),
			})
		},
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Registry: content.NewRegistry(content.RegistryConfig{}),
		Driver:   driver,
		Loader:   store,
		Reader:   render.NewReader(render.ReaderConfig{}),
		Editor:   render.NewEditor(render.EditorConfig{}),
		Realtime: realtime,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return driver.Close(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
