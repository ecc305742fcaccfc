package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New создаёт logrus-логгер: format "text" — человекочитаемый, иначе JSON.
// Неизвестный уровень заменяется на info.
func New(level, format string) *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stdout

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if format == "text" {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	return log
}
