//go:build !windows

package notify

import "go.uber.org/zap"

func show(title, message string, blocking bool) error {
	if blocking {
		zap.S().Errorf("%s: %s", title, message)
		return nil
	}
	zap.S().Infof("%s: %s", title, message)
	return nil
}

func logFallback(title, message string, err error) {
	zap.S().Warnf("notify: %v; %s: %s", err, title, message)
}
