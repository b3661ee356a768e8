package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nijaru/yt-chat/config"
)

// New configures the standard logrus logger from cfg and returns it.
// When cfg.LogDir is set, entries are also written to a rotating app.log there.
func New(cfg *config.Config) (*logrus.Logger, error) {
	log := logrus.StandardLogger()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", cfg.LogLevel)
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out, err := output(cfg.LogDir)
	if err != nil {
		return nil, err
	}
	log.SetOutput(out)

	return log, nil
}

func output(logDir string) (io.Writer, error) {
	if logDir == "" {
		return os.Stdout, nil
	}

	if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "error creating log directory")
	}

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "app.log"),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	return io.MultiWriter(os.Stdout, logFile), nil
}
