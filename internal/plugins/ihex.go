package plugins

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrBadHex is returned for an Intel HEX image that cannot be parsed.
var ErrBadHex = errors.New("ota: malformed intel hex")

// Intel HEX record types.
const (
	recData         = 0x00
	recEOF          = 0x01
	recExtSegment   = 0x02
	recStartSegment = 0x03
	recExtLinear    = 0x04
	recStartLinear  = 0x05
)

// maxImageSize bounds the flat image a HEX file may describe.
const maxImageSize = 16 << 20

// ParseIntelHex flattens an Intel HEX image into bytes starting at address
// 0. Addresses with no data are filled with 0xFF.
func ParseIntelHex(text []byte) ([]byte, error) {
	mem := make(map[uint32]byte)
	var base, top uint32
	sawEOF := false

	scanner := bufio.NewScanner(bytes.NewReader(text))
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if sawEOF {
			return nil, fmt.Errorf("%w: line %d: data after end of file record", ErrBadHex, lineNo)
		}
		if line[0] != ':' {
			return nil, fmt.Errorf("%w: line %d: missing ':'", ErrBadHex, lineNo)
		}
		rec, err := hex.DecodeString(line[1:])
		if err != nil || len(rec) < 5 {
			return nil, fmt.Errorf("%w: line %d", ErrBadHex, lineNo)
		}
		n := int(rec[0])
		if len(rec) != n+5 {
			return nil, fmt.Errorf("%w: line %d: length mismatch", ErrBadHex, lineNo)
		}
		var sum byte
		for _, b := range rec {
			sum += b
		}
		if sum != 0 {
			return nil, fmt.Errorf("%w: line %d: bad checksum", ErrBadHex, lineNo)
		}

		offset := uint32(rec[1])<<8 | uint32(rec[2])
		data := rec[4 : 4+n]
		switch rec[3] {
		case recData:
			for i, b := range data {
				addr := base + offset + uint32(i)
				if addr >= maxImageSize {
					return nil, fmt.Errorf("%w: line %d: address %#x too large", ErrBadHex, lineNo, addr)
				}
				mem[addr] = b
				if addr+1 > top {
					top = addr + 1
				}
			}
		case recEOF:
			sawEOF = true
		case recExtSegment:
			if n != 2 {
				return nil, fmt.Errorf("%w: line %d: bad segment record", ErrBadHex, lineNo)
			}
			base = (uint32(data[0])<<8 | uint32(data[1])) << 4
		case recExtLinear:
			if n != 2 {
				return nil, fmt.Errorf("%w: line %d: bad linear record", ErrBadHex, lineNo)
			}
			base = (uint32(data[0])<<8 | uint32(data[1])) << 16
		case recStartSegment, recStartLinear:
		default:
			return nil, fmt.Errorf("%w: line %d: record type %#x", ErrBadHex, lineNo, rec[3])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHex, err)
	}
	if !sawEOF {
		return nil, fmt.Errorf("%w: no end of file record", ErrBadHex)
	}

	image := bytes.Repeat([]byte{0xFF}, int(top))
	for addr, b := range mem {
		image[addr] = b
	}
	return image, nil
}
