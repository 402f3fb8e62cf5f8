package cartridge

// Mapper translates CPU and PPU addresses into cartridge ROM offsets
type Mapper interface {
	ReadPRG(address uint16) uint8
	ReadCHR(address uint16) uint8
}

// Mapper000 implements NROM (mapper 0)
// NROM has no bank switching:
// - 16KB or 32KB PRG ROM (16KB is mirrored to fill the 32KB window)
// - 8KB CHR ROM
type Mapper000 struct {
	cart     *Cartridge
	prgBanks int // Number of 16KB PRG banks
}

// NewMapper000 creates a new NROM mapper
func NewMapper000(cart *Cartridge) *Mapper000 {
	return &Mapper000{
		cart:     cart,
		prgBanks: len(cart.prgROM) / prgBankSize,
	}
}

// ReadPRG reads from PRG ROM
// 0x8000-0xFFFF: 32KB PRG ROM window
//   - one bank: 0x8000-0xBFFF mirrors to 0xC000-0xFFFF
//   - two or more banks: first 32KB direct mapped
func (m *Mapper000) ReadPRG(address uint16) uint8 {
	if address < 0x8000 || len(m.cart.prgROM) == 0 {
		return 0
	}
	offset := int(address - 0x8000)
	if m.prgBanks == 1 {
		offset &= 0x3FFF
	}
	if offset < len(m.cart.prgROM) {
		return m.cart.prgROM[offset]
	}
	return 0
}

// ReadCHR reads from CHR ROM at PPU addresses 0x0000-0x1FFF
func (m *Mapper000) ReadCHR(address uint16) uint8 {
	if int(address) < len(m.cart.chrROM) && address < 0x2000 {
		return m.cart.chrROM[address]
	}
	return 0
}
