package state

import (
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithFields(logrus.Fields{"prefix": "state"})

func SetLogger(l *logrus.Entry) {
	logger = l
}
