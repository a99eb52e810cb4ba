//go:build windows
// +build windows

package telemetry

import (
	"fmt"
	"image"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modShell32         = windows.NewLazySystemDLL("shell32.dll")
	procExtractIconExW = modShell32.NewProc("ExtractIconExW")
	procGetIconInfo    = modUser32.NewProc("GetIconInfo")
	procDestroyIcon    = modUser32.NewProc("DestroyIcon")
	procGetDC          = modUser32.NewProc("GetDC")
	procReleaseDC      = modUser32.NewProc("ReleaseDC")
	modGdi32           = windows.NewLazySystemDLL("gdi32.dll")
	procGetObjectW     = modGdi32.NewProc("GetObjectW")
	procGetDIBits      = modGdi32.NewProc("GetDIBits")
	procDeleteObject   = modGdi32.NewProc("DeleteObject")
)

type iconInfo struct {
	FIcon    int32
	XHotspot uint32
	YHotspot uint32
	HbmMask  windows.Handle
	HbmColor windows.Handle
}

type bitmap struct {
	Type       int32
	Width      int32
	Height     int32
	WidthBytes int32
	Planes     uint16
	BitsPixel  uint16
	Bits       uintptr
}

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

type bitmapInfo struct {
	Header bitmapInfoHeader
	Colors [1]uint32
}

// ResolveIcon extracts the small icon of an executable as an RGBA image.
// It returns nil, nil when the file carries no icon.
func (d *Desktop) ResolveIcon(exePath string) (image.Image, error) {
	path, err := windows.UTF16PtrFromString(exePath)
	if err != nil {
		return nil, err
	}

	var large, small windows.Handle
	n, _, _ := procExtractIconExW.Call(
		uintptr(unsafe.Pointer(path)),
		0,
		uintptr(unsafe.Pointer(&large)),
		uintptr(unsafe.Pointer(&small)),
		1,
	)
	if large != 0 {
		defer procDestroyIcon.Call(uintptr(large))
	}
	if small != 0 {
		defer procDestroyIcon.Call(uintptr(small))
	}
	if n == 0 || n == ^uintptr(0) {
		return nil, nil
	}

	icon := small
	if icon == 0 {
		icon = large
	}
	if icon == 0 {
		return nil, nil
	}
	return iconToImage(icon)
}

func iconToImage(icon windows.Handle) (image.Image, error) {
	var info iconInfo
	if r, _, e := procGetIconInfo.Call(uintptr(icon), uintptr(unsafe.Pointer(&info))); r == 0 {
		return nil, fmt.Errorf("GetIconInfo: %w", e)
	}
	if info.HbmMask != 0 {
		defer procDeleteObject.Call(uintptr(info.HbmMask))
	}
	if info.HbmColor == 0 {
		return nil, nil
	}
	defer procDeleteObject.Call(uintptr(info.HbmColor))

	var bm bitmap
	if r, _, e := procGetObjectW.Call(
		uintptr(info.HbmColor),
		unsafe.Sizeof(bm),
		uintptr(unsafe.Pointer(&bm)),
	); r == 0 {
		return nil, fmt.Errorf("GetObject: %w", e)
	}
	w, h := int(bm.Width), int(bm.Height)
	if w <= 0 || h <= 0 {
		return nil, nil
	}

	hdc, _, _ := procGetDC.Call(0)
	if hdc == 0 {
		return nil, fmt.Errorf("GetDC failed")
	}
	defer procReleaseDC.Call(0, hdc)

	bmi := bitmapInfo{Header: bitmapInfoHeader{
		Width:    int32(w),
		Height:   -int32(h), // top-down rows
		Planes:   1,
		BitCount: 32,
	}}
	bmi.Header.Size = uint32(unsafe.Sizeof(bmi.Header))

	buf := make([]byte, w*h*4)
	if r, _, e := procGetDIBits.Call(
		hdc,
		uintptr(info.HbmColor),
		0,
		uintptr(h),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&bmi)),
		0,
	); r == 0 {
		return nil, fmt.Errorf("GetDIBits: %w", e)
	}

	return bgraToNRGBA(buf, w, h), nil
}
