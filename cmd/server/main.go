package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dbwatch/api/server"
	"dbwatch/internal/alerting"
	"dbwatch/internal/collector"
	"dbwatch/internal/config"
	"dbwatch/internal/database"
	"dbwatch/internal/elasticsearch"
	"dbwatch/internal/logger"
	"dbwatch/internal/monitor"
	"dbwatch/internal/notify"
	"dbwatch/internal/storage"

	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "etc/config.yaml", "Path to configuration file")
	version    = "1.0.0"
)

func main() {
	flag.Parse()

	var cfg *config.Config

	if _, err := os.Stat(*configFile); err == nil {
		cfg, err = config.LoadFromFile(*configFile)
		if err != nil {
			fmt.Printf("Failed to load config from file: %v\n", err)
			fmt.Println("Falling back to environment variables...")
			cfg = config.Load()
		}
	} else {
		fmt.Println("Config file not found, loading from environment variables...")
		cfg = config.Load()
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger.Level, cfg.Logger.Output); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting dbwatch",
		zap.String("version", version),
		zap.String("config_file", *configFile),
	)

	db, err := database.InitDB(database.Config{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	logger.Info("Database initialized",
		zap.String("driver", cfg.Database.Driver),
		zap.String("database", cfg.Database.DBName),
	)

	store := storage.NewStore(db)

	var esClient *elasticsearch.Client
	if cfg.Elasticsearch.Enabled {
		esClient, err = elasticsearch.NewClient(cfg.Elasticsearch)
		if err != nil {
			logger.Fatal("Failed to initialize Elasticsearch", zap.Error(err))
		}
		logger.Info("Elasticsearch initialized")
	} else {
		logger.Info("Elasticsearch is disabled")
	}

	logDir := "logs"
	if err := logger.InitCheckLog(logDir); err != nil {
		logger.Warn("Failed to initialize check log directory", zap.Error(err))
		logDir = ""
	}

	transport, err := notify.NewSMTPTransportFromSettings(store)
	if err != nil {
		logger.Warn("Failed to build email transport", zap.Error(err))
	}
	emailer := notify.NewEmailer(store, transport)
	ticketer := notify.NewITSDClient(store)
	dispatcher := notify.NewDispatcher(emailer, ticketer, store)

	recorder := alerting.NewRecorder(store, alerting.Policy(cfg.Monitor.RealertPolicy))

	monitorService := monitor.NewService(
		store,
		collector.NewOracleCollector(),
		collector.NewSSHFileSystemCollector(),
		recorder,
		dispatcher,
		esClient,
		monitor.Options{
			CheckTimeout: time.Duration(cfg.Monitor.CheckTimeout) * time.Second,
			Workers:      cfg.Monitor.Workers,
			LogDir:       logDir,
		},
	)
	monitorService.Start(time.Duration(cfg.Monitor.CheckInterval) * time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	go func() {
		httpServer := server.NewServer(store, monitorService, esClient)
		logger.Info("Starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.Run(httpAddr); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("dbwatch is running",
		zap.Int("http_port", cfg.Server.HTTPPort),
		zap.Int("check_interval", cfg.Monitor.CheckInterval),
	)

	sig := <-sigChan
	logger.Info("Received signal, shutting down...", zap.String("signal", sig.String()))

	monitorService.Stop()
	dispatcher.Close()

	logger.Info("dbwatch stopped")
}
