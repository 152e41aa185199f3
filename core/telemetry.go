package core

// Ambient logging. All components log through
// github.com/sirupsen/logrus, gated by
// VRRB_ENVIRONMENT/VRRB_PRETTY_PRINT_LOGS.

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the package-wide logger, configured once by ConfigureLogging.
var Log = logrus.New()

// ConfigureLogging sets Log's level and formatter from the environment:
// VRRB_ENVIRONMENT selects verbosity and file/line capture,
// VRRB_PRETTY_PRINT_LOGS selects a human-readable vs. structured (JSON)
// formatter.
func ConfigureLogging() {
	env := os.Getenv("VRRB_ENVIRONMENT")
	pretty := os.Getenv("VRRB_PRETTY_PRINT_LOGS") == "true"

	switch env {
	case "local", "test":
		Log.SetLevel(logrus.DebugLevel)
		Log.SetReportCaller(true)
	default:
		Log.SetLevel(logrus.InfoLevel)
		Log.SetReportCaller(false)
	}

	if pretty {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		Log.SetFormatter(&logrus.JSONFormatter{})
	}
}
