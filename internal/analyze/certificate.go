package analyze

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/vfs19/edlscan/internal/model"
)

// SLA certificate layout constants.
const (
	// slaCertMaxSize bounds one certificate blob; observed certificates
	// fit in 2 KB.
	slaCertMaxSize = 2048

	// slaHeaderSize is magic + version + serial.
	slaHeaderSize = 12
)

// slaMagic opens every SLA certificate.
var slaMagic = []byte("SLA\x00")

// Certificate parse errors.
var (
	// ErrCertTooSmall is returned when the blob cannot hold the header.
	ErrCertTooSmall = errors.New("data too small for SLA certificate header")

	// ErrBadCertMagic is returned when the SLA magic is missing.
	ErrBadCertMagic = errors.New("invalid SLA certificate magic")
)

// FindSLAOffsets returns every offset in the image where the SLA magic
// appears. Overlapping candidates are allowed; parsing sorts them out.
func FindSLAOffsets(image []byte) []int64 {
	var offsets []int64
	from := 0
	for {
		pos := bytes.Index(image[from:], slaMagic)
		if pos < 0 {
			return offsets
		}
		offsets = append(offsets, int64(from+pos))
		from += pos + len(slaMagic)
	}
}

// CertificateBlob slices the certificate candidate starting at offset,
// capped at slaCertMaxSize.
func CertificateBlob(image []byte, offset int64) []byte {
	end := offset + slaCertMaxSize
	if end > int64(len(image)) {
		end = int64(len(image))
	}
	return image[offset:end]
}

// ParseCertificate decodes the fixed-offset SLA certificate structure:
// 4-byte magic, little-endian version and serial, then the signature
// blob running to the end of the data.
func ParseCertificate(data []byte, offset int64) (*model.SLACertificate, error) {
	if len(data) < slaHeaderSize {
		return nil, ErrCertTooSmall
	}
	if !bytes.Equal(data[0:4], slaMagic) {
		return nil, ErrBadCertMagic
	}

	le := binary.LittleEndian
	return &model.SLACertificate{
		Offset:        offset,
		Magic:         hex.EncodeToString(data[0:4]),
		Version:       le.Uint32(data[4:8]),
		Serial:        le.Uint32(data[8:12]),
		Size:          len(data),
		SignatureSize: len(data) - slaHeaderSize,
	}, nil
}
