package container

import "github.com/sirupsen/logrus"

// log is the package-level logger used by every subsystem. Callers that
// embed this package in a larger application can reconfigure it directly,
// the same way goioc/di leaves logrus global and configures it in init().
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.TextFormatter{})
}

// SetLogger replaces the package-level logger, e.g. to route container
// diagnostics into an application's own logrus instance.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}
