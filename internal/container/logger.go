package container

import "go.uber.org/zap"

// serviceLogger adapts zap to the key-value Logger interfaces the
// application and HTTP layers depend on.
type serviceLogger struct {
	sugar *zap.SugaredLogger
}

func newServiceLogger(logger *zap.Logger) *serviceLogger {
	return &serviceLogger{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *serviceLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *serviceLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *serviceLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}
