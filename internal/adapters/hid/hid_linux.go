//go:build linux

// Package hid implements the device snapshot source on top of the platform's
// raw HID layer.
package hid

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mkanda/typerace/internal/domain/model"
)

// Keyboard usage classification reported for matching devices.
const (
	usagePageGenericDesktop = 0x01
	usageKeyboard           = 0x06
)

// Enumerator lists hidraw devices and opens their report streams. Reports on
// /dev/hidrawX are raw HID frames from the kernel driver, which keeps them
// attributable to a single physical device even when several keyboards are
// plugged in.
type Enumerator struct{}

// NewEnumerator creates a hidraw-backed enumerator.
func NewEnumerator() *Enumerator {
	return &Enumerator{}
}

// ListDevices scans /dev/hidraw* and returns entries classified as keyboards.
// Classification reads the sysfs uevent of each node; devices whose HID name
// does not look like a keyboard are skipped.
func (e *Enumerator) ListDevices(ctx context.Context) ([]model.Device, error) {
	nodes, err := filepath.Glob("/dev/hidraw*")
	if err != nil {
		return nil, fmt.Errorf("globbing hidraw nodes: %w", err)
	}

	var devices []model.Device
	for _, node := range nodes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		dev, ok := readUevent(node)
		if !ok {
			continue
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// OpenStream opens the raw report stream of one device node.
func (e *Enumerator) OpenStream(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}

// readUevent parses /sys/class/hidraw/<node>/device/uevent into a Device.
// Typical content:
//
//	HID_ID=0003:0000046D:0000C31C
//	HID_NAME=Logitech USB Keyboard
//	HID_PHYS=usb-0000:00:14.0-2/input0
func readUevent(node string) (model.Device, bool) {
	sysPath := filepath.Join("/sys/class/hidraw", filepath.Base(node), "device/uevent")
	f, err := os.Open(sysPath)
	if err != nil {
		return model.Device{}, false
	}
	defer f.Close()

	dev := model.Device{Path: node}
	keyboard := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch key {
		case "HID_NAME":
			dev.Product = value
			if strings.Contains(strings.ToLower(value), "keyboard") {
				keyboard = true
			}
		case "HID_ID":
			vendor, product, ok := parseHIDID(value)
			if ok {
				dev.VendorID = vendor
				dev.ProductID = product
			}
		}
	}
	if !keyboard {
		return model.Device{}, false
	}

	dev.UsagePage = usagePageGenericDesktop
	dev.Usage = usageKeyboard
	return dev, true
}

// parseHIDID splits the bus:vendor:product triple of a HID_ID line.
func parseHIDID(value string) (vendor, product uint16, ok bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return 0, 0, false
	}
	p, err := strconv.ParseUint(parts[2], 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return uint16(v), uint16(p), true
}
