package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/Joseda-hg/lazyagenda/internal/agenda"
	"github.com/Joseda-hg/lazyagenda/internal/config"
	"github.com/Joseda-hg/lazyagenda/internal/db"
	"github.com/Joseda-hg/lazyagenda/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPathFlag := flag.String("config", "", "config file path")
	dbPathFlag := flag.String("db", "", "sqlite db path")
	envFileFlag := flag.String("env", ".env", "dotenv file with LAZYAGENDA_* overrides")
	initFlag := flag.Bool("init", false, "create the database schema if absent and exit")
	debugFlag := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	cfgPath, err := resolveConfigPath(*configPathFlag)
	if err != nil {
		return err
	}

	fileCfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Save(cfgPath, fileCfg.Resolve(cfgPath)); err != nil {
		return err
	}

	cfg, err := config.ApplyEnv(fileCfg, *envFileFlag)
	if err != nil {
		return err
	}
	if *dbPathFlag != "" {
		cfg.DBPath = *dbPathFlag
	}
	if *debugFlag {
		cfg.LogLevel = "debug"
	}
	cfg = cfg.Resolve(cfgPath)

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := context.Background()
	if *initFlag {
		return initSchema(ctx, cfg.DBPath, logger)
	}

	store, closeStore, err := openStore(cfg.DBPath)
	if err != nil {
		logger.WithError(err).WithField("db", cfg.DBPath).Error("open database")
		return err
	}
	defer closeStore()

	logger.WithFields(log.Fields{"db": cfg.DBPath, "config": cfgPath}).Info("starting lazyagenda")
	return tui.Run(ctx, agenda.NewManager(store, logger))
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}

// newLogger writes to the configured log file; the terminal belongs to the UI.
func newLogger(cfg config.Config) (*log.Logger, func(), error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	if err := config.EnsureDir(cfg.LogPath); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	logger := log.New()
	logger.SetOutput(file)
	logger.SetLevel(level)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	return logger, func() { _ = file.Close() }, nil
}

func initSchema(ctx context.Context, dbPath string, logger *log.Logger) error {
	if err := config.EnsureDir(dbPath); err != nil {
		return err
	}

	created, err := db.Init(ctx, dbPath)
	if err != nil {
		logger.WithError(err).WithField("db", dbPath).Error("init schema")
		return err
	}

	logger.WithFields(log.Fields{"db": dbPath, "created": created}).Info("schema checked")
	if created {
		fmt.Printf("created schema in %s\n", dbPath)
	} else {
		fmt.Printf("schema already present in %s\n", dbPath)
	}
	return nil
}

func openStore(dbPath string) (*db.Store, func(), error) {
	if err := config.EnsureDir(dbPath); err != nil {
		return nil, nil, err
	}

	sqlDB, err := db.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}

	return db.NewStore(sqlDB), func() { _ = sqlDB.Close() }, nil
}
