//go:build !windows

package main

import (
	"go.uber.org/zap"

	"cad-lingo/src/screenshot"
)

func enableDPIAwareness() {}

func logMonitorConfiguration() {
	b, err := screenshot.VirtualBounds()
	if err != nil {
		zap.S().Warnf("MONITOR: %v", err)
		return
	}
	zap.S().Infof("MONITOR: virtual screen x:%d y:%d w:%d h:%d", b.Min.X, b.Min.Y, b.Dx(), b.Dy())
	if p, err := screenshot.PrimaryBounds(); err == nil {
		zap.S().Infof("MONITOR: primary x:%d y:%d w:%d h:%d", p.Min.X, p.Min.Y, p.Dx(), p.Dy())
	}
}
