package logging

import (
	"github.com/sirupsen/logrus"
)

// Logrus adapts a logrus.Entry to the key/value Logger interface.
type Logrus struct{ E *logrus.Entry }

func (l Logrus) Debug(msg string, args ...any) { l.E.WithFields(logrusFields(args)).Debug(msg) }
func (l Logrus) Info(msg string, args ...any)  { l.E.WithFields(logrusFields(args)).Info(msg) }
func (l Logrus) Warn(msg string, args ...any)  { l.E.WithFields(logrusFields(args)).Warn(msg) }
func (l Logrus) Error(msg string, args ...any) { l.E.WithFields(logrusFields(args)).Error(msg) }

func logrusFields(args []any) logrus.Fields {
	f := make(logrus.Fields, (len(args)+1)/2)
	forEachPair(args, func(k string, v any) {
		f[k] = v
	})
	return f
}
