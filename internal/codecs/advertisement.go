package codecs

import (
	"fmt"
	"strings"
	"time"
)

// BLE AD structure types carrying codec payloads. Vendor controllers hide
// their payloads in service-UUID or manufacturer-specific AD structures.
const (
	adTypeUUID16List   = 0x03
	adTypeUUID32List   = 0x05
	adTypeServiceData  = 0x16
	adTypeManufacturer = 0xFF
	adTypeFlags        = 0x01
)

// Advertisement is one raw BLE advertising payload plus the metadata needed
// to decode it: the AD structure type the payload was found in and the
// receive timestamp. The buffer is treated as immutable once constructed.
type Advertisement struct {
	// BLEType is the AD structure type carrying the payload
	// (0x03/0x05/0x16/0xFF), or 0 when the buffer had no AD framing.
	BLEType byte

	// ADFlag, when non-zero, is the advertising flags value prepended on
	// transmit (a leading 0x02 0x01 <flag> structure).
	ADFlag byte

	// Raw is the payload of the matched AD structure, type byte excluded.
	Raw []byte

	// Received is when the transport observed the packet. Zero for
	// advertisements built for transmission.
	Received time.Time
}

// ParseAdvertisement walks the AD structures of a raw advertising buffer
// and extracts the last payload-bearing structure. Buffers without valid
// AD framing are kept whole so bare vendor dumps still decode.
func ParseAdvertisement(raw []byte, received time.Time) Advertisement {
	var bleType byte
	var data []byte
	rem := raw
	for len(rem) > 2 {
		partLen := int(rem[0])
		if partLen+1 > len(rem) {
			break
		}
		partType := rem[1]
		if partType == adTypeUUID16List || partType == adTypeUUID32List ||
			partType == adTypeServiceData || partType == adTypeManufacturer {
			bleType = partType
			data = rem[2 : partLen+1]
		}
		rem = rem[partLen+1:]
	}
	if bleType == 0 {
		data = raw
	}
	return Advertisement{BLEType: bleType, Raw: data, Received: received}
}

// Bytes reassembles the full advertising buffer: optional flags structure,
// then the payload wrapped in its AD structure.
func (a Advertisement) Bytes() []byte {
	var full []byte
	if a.BLEType != 0 {
		full = append(full, byte(len(a.Raw)+1), a.BLEType)
	}
	full = append(full, a.Raw...)
	if a.ADFlag != 0 {
		return append([]byte{0x02, adTypeFlags, a.ADFlag}, full...)
	}
	return full
}

func (a Advertisement) String() string {
	parts := make([]string, len(a.Raw))
	for i, b := range a.Raw {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return fmt.Sprintf("type:0x%02X raw:%s", a.BLEType, strings.Join(parts, "."))
}
