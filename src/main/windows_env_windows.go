//go:build windows

package main

import (
	"log"

	"golang.org/x/sys/windows"
)

// enableDPIAwareness sets per-monitor DPI awareness so picker thumbnails and
// the screen bounds reported to the page match physical pixels.
func enableDPIAwareness() {
	const processPerMonitorDPIAware = 2
	setProcessDpiAwareness := windows.NewLazySystemDLL("Shcore.dll").NewProc("SetProcessDpiAwareness")
	if err := setProcessDpiAwareness.Find(); err == nil {
		if ret, _, _ := setProcessDpiAwareness.Call(processPerMonitorDPIAware); ret != 0 {
			log.Printf("DPI: SetProcessDpiAwareness failed, error code: %d", ret)
		}
		return
	}

	setProcessDPIAware := windows.NewLazySystemDLL("user32.dll").NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err != nil {
		log.Printf("DPI: no DPI awareness API available")
		return
	}
	if ret, _, _ := setProcessDPIAware.Call(); ret == 0 {
		log.Printf("DPI: SetProcessDPIAware failed")
	}
}

func logMonitorConfiguration() {
	const (
		smCXScreen        = 0
		smCYScreen        = 1
		smCXVirtualScreen = 78
		smCYVirtualScreen = 79
		smCMonitors       = 80
	)
	getSystemMetrics := windows.NewLazySystemDLL("user32.dll").NewProc("GetSystemMetrics")
	metric := func(i uintptr) int {
		v, _, _ := getSystemMetrics.Call(i)
		return int(int32(v))
	}
	log.Printf("MONITOR: %d monitors, primary %dx%d, virtual %dx%d",
		metric(smCMonitors), metric(smCXScreen), metric(smCYScreen),
		metric(smCXVirtualScreen), metric(smCYVirtualScreen))
}
