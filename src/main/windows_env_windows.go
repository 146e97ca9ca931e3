//go:build windows

package main

import (
	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

const (
	processPerMonitorDPIAware = 2

	smCXScreen        = 0
	smCYScreen        = 1
	smXVirtualScreen  = 76
	smYVirtualScreen  = 77
	smCXVirtualScreen = 78
	smCYVirtualScreen = 79
	smCMonitors       = 80
)

var (
	shcore = windows.NewLazySystemDLL("Shcore.dll")
	user32 = windows.NewLazySystemDLL("user32.dll")

	procSetProcessDpiAwareness = shcore.NewProc("SetProcessDpiAwareness")
	procSetProcessDPIAware     = user32.NewProc("SetProcessDPIAware")
	procGetSystemMetrics       = user32.NewProc("GetSystemMetrics")
)

// enableDPIAwareness sets per-monitor DPI awareness so captures use physical pixels.
func enableDPIAwareness() {
	if err := procSetProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := procSetProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret == 0 {
			zap.S().Infof("DPI: per-monitor DPI awareness set")
		} else {
			zap.S().Warnf("DPI: SetProcessDpiAwareness failed, HRESULT 0x%x", ret)
		}
		return
	}

	zap.S().Infof("DPI: Shcore.SetProcessDpiAwareness not available, trying fallback")
	if err := procSetProcessDPIAware.Find(); err != nil {
		zap.S().Warnf("DPI: SetProcessDPIAware not available, no DPI awareness set")
		return
	}
	if ret, _, _ := procSetProcessDPIAware.Call(); ret != 0 {
		zap.S().Infof("DPI: system DPI awareness set (fallback)")
	} else {
		zap.S().Warnf("DPI: SetProcessDPIAware failed")
	}
}

func systemMetric(index int) int {
	ret, _, _ := procGetSystemMetrics.Call(uintptr(index))
	return int(int32(ret))
}

func logMonitorConfiguration() {
	if err := procGetSystemMetrics.Find(); err != nil {
		zap.S().Warnf("MONITOR: GetSystemMetrics not available: %v", err)
		return
	}
	zap.S().Infof("MONITOR: detected %d monitors", systemMetric(smCMonitors))
	zap.S().Infof("MONITOR: virtual screen x:%d y:%d w:%d h:%d",
		systemMetric(smXVirtualScreen), systemMetric(smYVirtualScreen),
		systemMetric(smCXVirtualScreen), systemMetric(smCYVirtualScreen))
	zap.S().Infof("MONITOR: primary screen w:%d h:%d", systemMetric(smCXScreen), systemMetric(smCYScreen))
}
