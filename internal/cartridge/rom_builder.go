package cartridge

import "fmt"

// ROMConfig describes a synthetic iNES image
type ROMConfig struct {
	PRGSize      uint8            // PRG ROM size in 16KB units
	CHRSize      uint8            // CHR ROM size in 8KB units
	MapperID     uint8            // Mapper number
	Mirroring    MirrorMode       // Nametable mirroring
	HasBattery   bool             // Persistent RAM flag
	HasTrainer   bool             // 512-byte trainer
	Version      uint8            // Format version bits (byte 7, bits 2-3)
	Program      []uint8          // Code placed at the start of PRG ROM
	Data         map[uint16]uint8 // Bytes at PRG ROM offsets
	ResetVector  uint16
	IRQVector    uint16
	NMIVector    uint16
	CHRData      []uint8
	TrainerData  []uint8
}

// ROMBuilder provides a fluent interface for building synthetic images
type ROMBuilder struct {
	config ROMConfig
}

// NewROMBuilder creates a builder for a one-bank NROM image whose vectors
// all point at 0x8000
func NewROMBuilder() *ROMBuilder {
	return &ROMBuilder{
		config: ROMConfig{
			PRGSize:     1,
			CHRSize:     1,
			Mirroring:   MirrorHorizontal,
			Data:        make(map[uint16]uint8),
			ResetVector: 0x8000,
			IRQVector:   0x8000,
			NMIVector:   0x8000,
		},
	}
}

// WithPRGSize sets the PRG ROM size in 16KB units
func (b *ROMBuilder) WithPRGSize(size uint8) *ROMBuilder {
	b.config.PRGSize = size
	return b
}

// WithCHRSize sets the CHR ROM size in 8KB units
func (b *ROMBuilder) WithCHRSize(size uint8) *ROMBuilder {
	b.config.CHRSize = size
	return b
}

// WithMapper sets the mapper number
func (b *ROMBuilder) WithMapper(mapperID uint8) *ROMBuilder {
	b.config.MapperID = mapperID
	return b
}

// WithMirroring sets the mirroring mode
func (b *ROMBuilder) WithMirroring(mirroring MirrorMode) *ROMBuilder {
	b.config.Mirroring = mirroring
	return b
}

// WithBattery sets the persistent RAM flag
func (b *ROMBuilder) WithBattery() *ROMBuilder {
	b.config.HasBattery = true
	return b
}

// WithTrainer adds a 512-byte trainer
func (b *ROMBuilder) WithTrainer(data []uint8) *ROMBuilder {
	b.config.HasTrainer = true
	b.config.TrainerData = data
	return b
}

// WithVersion sets the raw format version bits
func (b *ROMBuilder) WithVersion(version uint8) *ROMBuilder {
	b.config.Version = version
	return b
}

// WithProgram places code at the start of PRG ROM
func (b *ROMBuilder) WithProgram(program ...uint8) *ROMBuilder {
	b.config.Program = append([]uint8(nil), program...)
	return b
}

// WithData places bytes at a PRG ROM offset
func (b *ROMBuilder) WithData(offset uint16, data ...uint8) *ROMBuilder {
	for i, v := range data {
		b.config.Data[offset+uint16(i)] = v
	}
	return b
}

// WithResetVector sets the reset vector
func (b *ROMBuilder) WithResetVector(address uint16) *ROMBuilder {
	b.config.ResetVector = address
	return b
}

// WithIRQVector sets the IRQ/BRK vector
func (b *ROMBuilder) WithIRQVector(address uint16) *ROMBuilder {
	b.config.IRQVector = address
	return b
}

// WithNMIVector sets the NMI vector
func (b *ROMBuilder) WithNMIVector(address uint16) *ROMBuilder {
	b.config.NMIVector = address
	return b
}

// WithCHRData sets the leading CHR ROM bytes
func (b *ROMBuilder) WithCHRData(data []uint8) *ROMBuilder {
	b.config.CHRData = data
	return b
}

// Build renders the image bytes
func (b *ROMBuilder) Build() ([]byte, error) {
	return GenerateROM(b.config)
}

// BuildCartridge renders and parses the image
func (b *ROMBuilder) BuildCartridge() (*Cartridge, error) {
	data, err := b.Build()
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// GenerateROM creates image bytes from the configuration
func GenerateROM(config ROMConfig) ([]byte, error) {
	if config.PRGSize == 0 {
		return nil, fmt.Errorf("PRG ROM size cannot be zero")
	}

	header := make([]byte, headerSize)
	copy(header, magic[:])
	header[4] = config.PRGSize
	header[5] = config.CHRSize

	flags6 := (config.MapperID & 0x0F) << 4
	if config.Mirroring == MirrorVertical {
		flags6 |= flags6Mirroring
	}
	if config.HasBattery {
		flags6 |= flags6Battery
	}
	if config.HasTrainer {
		flags6 |= flags6Trainer
	}
	if config.Mirroring == MirrorFourScreen {
		flags6 |= flags6FourScreen
	}
	header[6] = flags6
	header[7] = config.MapperID&0xF0 | (config.Version<<2)&flags7Version

	result := header
	if config.HasTrainer {
		trainer := make([]uint8, trainerSize)
		copy(trainer, config.TrainerData)
		result = append(result, trainer...)
	}

	size := int(config.PRGSize) * prgBankSize
	prg := make([]byte, size)
	if len(config.Program) > size {
		return nil, fmt.Errorf("program too large for PRG ROM: %d > %d", len(config.Program), size)
	}
	copy(prg, config.Program)
	for offset, value := range config.Data {
		if int(offset) < size {
			prg[offset] = value
		}
	}

	// Vectors live in the last six bytes of the last bank
	v := size - 6
	prg[v], prg[v+1] = uint8(config.NMIVector), uint8(config.NMIVector>>8)
	prg[v+2], prg[v+3] = uint8(config.ResetVector), uint8(config.ResetVector>>8)
	prg[v+4], prg[v+5] = uint8(config.IRQVector), uint8(config.IRQVector>>8)
	result = append(result, prg...)

	chr := make([]byte, int(config.CHRSize)*chrBankSize)
	copy(chr, config.CHRData)
	result = append(result, chr...)

	return result, nil
}
