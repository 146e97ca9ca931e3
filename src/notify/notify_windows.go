//go:build windows

package notify

import (
	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

const (
	mbOK              = 0x00000000
	mbIconInformation = 0x00000040
	mbIconError       = 0x00000010
	mbTopmost         = 0x00040000
)

func show(title, message string, blocking bool) error {
	titlePtr, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return err
	}
	messagePtr, err := windows.UTF16PtrFromString(message)
	if err != nil {
		return err
	}
	style := uint32(mbOK | mbIconInformation | mbTopmost)
	if blocking {
		style = mbOK | mbIconError | mbTopmost
	}
	_, err = windows.MessageBox(0, messagePtr, titlePtr, style)
	return err
}

func logFallback(title, message string, err error) {
	zap.S().Warnf("notify: message box failed: %v; %s: %s", err, title, message)
}
