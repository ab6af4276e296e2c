package app

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/slotmarket/slotmarket/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ConfigureLogging applies the log level and optional rotating file output.
func ConfigureLogging(cfg *config.Config) {
	level, errParse := log.ParseLevel(cfg.Log.Level)
	if errParse != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if cfg.Log.File == "" {
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
}
