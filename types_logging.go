package auth

import (
	"github.com/goliatone/go-logger/glog"
)

// GlogProvider adapts a glog base logger into a LoggerProvider, so hosts
// running the glog stack get per-component scoped loggers
// ("auth.session_broker", "auth.registration", ...) for free.
func GlogProvider(base *glog.BaseLogger) LoggerProvider {
	return glogProvider{base: base}
}

type glogProvider struct {
	base *glog.BaseLogger
}

func (p glogProvider) GetLogger(name string) Logger {
	if p.base == nil {
		return defLogger{}
	}
	return p.base.GetLogger(name)
}

// DefaultLogger builds the pretty glog logger used by hosts that wire no
// logging at all.
func DefaultLogger(name string) Logger {
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName(name),
	).GetLogger(name)
}
