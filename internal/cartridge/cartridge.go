// Package cartridge implements ROM loading and parsing for iNES cartridge images.
package cartridge

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// Errors returned while parsing an image. Parsing is all-or-nothing: on error
// no Cartridge is produced.
var (
	ErrInvalidImage      = errors.New("invalid iNES image")
	ErrUnsupportedFormat = errors.New("unsupported iNES format version")
)

// iNES layout constants
const (
	headerSize  = 16
	trainerSize = 512
	prgBankSize = 16384
	chrBankSize = 8192

	flags6Mirroring  = 0x01
	flags6Battery    = 0x02
	flags6Trainer    = 0x04
	flags6FourScreen = 0x08
	flags7Version    = 0x0C
)

var magic = [4]uint8{'N', 'E', 'S', 0x1A}

// Cartridge is an immutable parsed iNES image
type Cartridge struct {
	// ROM data
	prgROM []uint8
	chrROM []uint8

	// Mapper information
	mapperID uint8
	mapper   Mapper

	// Mirroring mode
	mirror MirrorMode

	// Header flags kept for reporting only
	hasBattery bool
	hasTrainer bool

	checksum string
}

// MirrorMode represents nametable mirroring mode
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorFourScreen
)

// String returns a readable mirroring name
func (m MirrorMode) String() string {
	switch m {
	case MirrorHorizontal:
		return "horizontal"
	case MirrorVertical:
		return "vertical"
	case MirrorFourScreen:
		return "four-screen"
	default:
		return fmt.Sprintf("MirrorMode(%d)", uint8(m))
	}
}

// iNES header structure
type iNESHeader struct {
	Magic      [4]uint8
	PRGROMSize uint8 // in 16KB units
	CHRROMSize uint8 // in 8KB units
	Flags6     uint8
	Flags7     uint8
	Padding    [8]uint8
}

// LoadFromFile loads a cartridge from an iNES file
func LoadFromFile(filename string) (*Cartridge, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read ROM %s: %w", filename, err)
	}
	return Parse(data)
}

// LoadFromReader loads a cartridge from an io.Reader
func LoadFromReader(r io.Reader) (*Cartridge, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read ROM: %w", err)
	}
	return Parse(data)
}

// Parse decodes a raw iNES image held in memory.
func Parse(data []byte) (*Cartridge, error) {
	r := bytes.NewReader(data)

	var header iNESHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: header truncated (%d bytes)", ErrInvalidImage, len(data))
	}

	if header.Magic != magic {
		return nil, fmt.Errorf("%w: bad magic % X", ErrInvalidImage, header.Magic[:])
	}

	// Only archaic iNES (version bits 00) is understood
	if version := (header.Flags7 & flags7Version) >> 2; version != 0 {
		return nil, fmt.Errorf("%w: version bits %d", ErrUnsupportedFormat, version)
	}

	if header.PRGROMSize == 0 {
		return nil, fmt.Errorf("%w: PRG ROM size cannot be zero", ErrInvalidImage)
	}

	cart := &Cartridge{
		mapperID:   (header.Flags7 & 0xF0) | (header.Flags6 >> 4),
		hasBattery: header.Flags6&flags6Battery != 0,
		hasTrainer: header.Flags6&flags6Trainer != 0,
	}

	// Set mirroring mode
	switch {
	case header.Flags6&flags6FourScreen != 0:
		cart.mirror = MirrorFourScreen
	case header.Flags6&flags6Mirroring != 0:
		cart.mirror = MirrorVertical
	default:
		cart.mirror = MirrorHorizontal
	}

	// Skip trainer if present
	if cart.hasTrainer {
		if r.Len() < trainerSize {
			return nil, fmt.Errorf("%w: trainer truncated", ErrInvalidImage)
		}
		if _, err := r.Seek(trainerSize, io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
	}

	prgSize := int(header.PRGROMSize) * prgBankSize
	cart.prgROM = make([]uint8, prgSize)
	if _, err := io.ReadFull(r, cart.prgROM); err != nil {
		return nil, fmt.Errorf("%w: PRG ROM truncated, want %d bytes", ErrInvalidImage, prgSize)
	}

	chrSize := int(header.CHRROMSize) * chrBankSize
	cart.chrROM = make([]uint8, chrSize)
	if _, err := io.ReadFull(r, cart.chrROM); err != nil {
		return nil, fmt.Errorf("%w: CHR ROM truncated, want %d bytes", ErrInvalidImage, chrSize)
	}

	sum := sha1.Sum(data)
	cart.checksum = hex.EncodeToString(sum[:])
	cart.mapper = createMapper(cart.mapperID, cart)

	return cart, nil
}

// ReadPRG reads from PRG ROM through the mapper
func (c *Cartridge) ReadPRG(address uint16) uint8 {
	return c.mapper.ReadPRG(address)
}

// ReadCHR reads from CHR ROM through the mapper
func (c *Cartridge) ReadCHR(address uint16) uint8 {
	return c.mapper.ReadCHR(address)
}

// PRGROM returns a copy of the PRG ROM bytes
func (c *Cartridge) PRGROM() []uint8 {
	return append([]uint8(nil), c.prgROM...)
}

// CHRROM returns a copy of the CHR ROM bytes
func (c *Cartridge) CHRROM() []uint8 {
	return append([]uint8(nil), c.chrROM...)
}

// PRGSize returns the PRG ROM length in bytes
func (c *Cartridge) PRGSize() int { return len(c.prgROM) }

// CHRSize returns the CHR ROM length in bytes
func (c *Cartridge) CHRSize() int { return len(c.chrROM) }

// MapperID returns the iNES mapper number
func (c *Cartridge) MapperID() uint8 { return c.mapperID }

// GetMirrorMode returns the cartridge's mirroring mode
func (c *Cartridge) GetMirrorMode() MirrorMode {
	return c.mirror
}

// HasBattery reports the persistent-RAM header flag
func (c *Cartridge) HasBattery() bool { return c.hasBattery }

// HasTrainer reports whether a trainer block was skipped
func (c *Cartridge) HasTrainer() bool { return c.hasTrainer }

// Checksum returns the hex SHA-1 of the raw image
func (c *Cartridge) Checksum() string { return c.checksum }

// String summarizes the header for logging
func (c *Cartridge) String() string {
	return fmt.Sprintf("mapper %d, PRG %dK, CHR %dK, %s mirroring",
		c.mapperID, len(c.prgROM)/1024, len(c.chrROM)/1024, c.mirror)
}

// createMapper creates the appropriate mapper for the given ID
func createMapper(id uint8, cart *Cartridge) Mapper {
	switch id {
	case 0:
		return NewMapper000(cart)
	default:
		// Bank switching is not modeled; every image is read as NROM
		return NewMapper000(cart)
	}
}
