package radiosity

import "github.com/sirupsen/logrus"

// Log is the package logger. Replace it to route solver diagnostics into a
// host application's structured logging.
var Log logrus.FieldLogger = logrus.StandardLogger()
