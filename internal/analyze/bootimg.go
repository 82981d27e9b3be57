package analyze

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vfs19/edlscan/internal/model"
)

// Android boot image constants.
const (
	// bootMagic opens every Android boot image.
	bootMagic = "ANDROID!"

	// bootHeaderMin is the minimum image size carrying a full header.
	bootHeaderMin = 2048

	// defaultKernelStart is where the kernel begins when the header
	// reports no page size: one legacy 2048-byte page past the header.
	defaultKernelStart = 2048
)

// Boot image parse errors.
var (
	// ErrImageTooSmall is returned for images below the header size.
	ErrImageTooSmall = errors.New("boot image too small for header")

	// ErrNotBootImage is returned when the ANDROID! magic is missing.
	ErrNotBootImage = errors.New("not an Android boot image")
)

// ParseBootHeader parses the fixed-offset Android boot header.
// All fields are little-endian.
func ParseBootHeader(image []byte) (*model.BootHeader, error) {
	if len(image) < bootHeaderMin {
		return nil, ErrImageTooSmall
	}
	if string(image[0:8]) != bootMagic {
		return nil, ErrNotBootImage
	}

	le := binary.LittleEndian
	return &model.BootHeader{
		Magic:       bootMagic,
		KernelSize:  le.Uint32(image[8:12]),
		KernelAddr:  le.Uint32(image[12:16]),
		RamdiskSize: le.Uint32(image[16:20]),
		RamdiskAddr: le.Uint32(image[20:24]),
		SecondSize:  le.Uint32(image[24:28]),
		SecondAddr:  le.Uint32(image[28:32]),
		TagsAddr:    le.Uint32(image[32:36]),
		PageSize:    le.Uint32(image[36:40]),
	}, nil
}

// ExtractKernel writes the kernel payload to outPath and returns the
// number of bytes written. The kernel starts one page past the header.
func ExtractKernel(image []byte, header *model.BootHeader, outPath string) (int, error) {
	start := int(header.PageSize)
	if start == 0 {
		start = defaultKernelStart
	}

	end := start + int(header.KernelSize)
	if end > len(image) {
		end = len(image)
	}
	if start >= end {
		return 0, fmt.Errorf("kernel region [%d:%d) outside image of %d bytes", start, end, len(image))
	}

	if err := writeArtifact(outPath, image[start:end]); err != nil {
		return 0, err
	}
	return end - start, nil
}

// ExtractRamdisk writes the ramdisk payload to outPath and returns the
// number of bytes written. The ramdisk follows the kernel, page-aligned.
func ExtractRamdisk(image []byte, header *model.BootHeader, outPath string) (int, error) {
	pageSize := int(header.PageSize)
	if pageSize == 0 {
		pageSize = defaultKernelStart
	}

	kernelPages := (int(header.KernelSize) + pageSize - 1) / pageSize
	start := pageSize + kernelPages*pageSize
	end := start + int(header.RamdiskSize)
	if end > len(image) {
		end = len(image)
	}
	if start >= end {
		return 0, fmt.Errorf("ramdisk region [%d:%d) outside image of %d bytes", start, end, len(image))
	}

	if err := writeArtifact(outPath, image[start:end]); err != nil {
		return 0, err
	}
	return end - start, nil
}

// writeArtifact writes data to path, creating parent directories.
func writeArtifact(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
