package log

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sparklet/backend/utils/dotenv"
)

// global accessible logger
var (
	logger *logrus.Logger
	Log    *logrus.Entry
)

// This init function is only for testing cases, where the entry point is not
// main function. Unit tests would fail with nil pointer dereference if we
// don't init here.
func init() {
	InitLogger()
}

func InitLogger() {
	logger = logrus.New()
	logger.SetOutput(os.Stderr)

	if os.Getenv("SPARKLET_ENV") == dotenv.ProdEnv {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "sparklet-api"
	}
	Log = logger.WithFields(logrus.Fields{
		"service":        service,
		"is_development": os.Getenv("SPARKLET_ENV") != dotenv.ProdEnv,
	})
}
