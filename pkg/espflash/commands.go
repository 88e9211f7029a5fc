// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package espflash

import "sort"

// Bootloader command opcodes - ROM loader and stub loader
const (
	CmdFlashBegin      = 0x02
	CmdFlashData       = 0x03
	CmdFlashEnd        = 0x04
	CmdMemBegin        = 0x05
	CmdMemEnd          = 0x06
	CmdMemData         = 0x07
	CmdSync            = 0x08
	CmdWriteReg        = 0x09
	CmdReadReg         = 0x0A
	CmdSpiSetParams    = 0x0B
	CmdSpiAttach       = 0x0D
	CmdChangeBaudrate  = 0x0F
	CmdFlashDeflBegin  = 0x10
	CmdFlashDeflData   = 0x11
	CmdFlashDeflEnd    = 0x12
	CmdSpiFlashMD5     = 0x13
	CmdGetSecurityInfo = 0x14
)

// Stub loader only opcodes
const (
	CmdEraseFlash  = 0xD0
	CmdEraseRegion = 0xD1
	CmdReadFlash   = 0xD2
	CmdRunUserCode = 0xD3
)

// CommandDescriptor describes one bootloader command for labeling purposes.
// Descriptors are never mutated after package initialization.
type CommandDescriptor struct {
	Opcode      uint8
	Name        string
	Description string
	Payload     string // payload layout, used as the data annotation label
	StubOnly    bool
}

// Label returns the name with a stub loader marker where applicable
func (c *CommandDescriptor) Label() string {
	if c.StubOnly {
		return c.Name + " (stub loader)"
	}
	return c.Name
}

var commandTable = map[uint8]*CommandDescriptor{
	CmdFlashBegin: {
		Opcode:      CmdFlashBegin,
		Name:        "FLASH_BEGIN",
		Description: "Begin Flash Download",
		Payload:     "Four 32-bit words: size to erase, number of data packets, data size in one packet, flash offset. A fifth 32-bit word passed to ROM loader only: 1 to begin encrypted flash, 0 to not.",
	},
	CmdFlashData: {
		Opcode:      CmdFlashData,
		Name:        "FLASH_DATA",
		Description: "Flash Download Data",
		Payload:     "Four 32-bit words: data size, sequence number, 0, 0, then data. Uses Checksum.",
	},
	CmdFlashEnd: {
		Opcode:      CmdFlashEnd,
		Name:        "FLASH_END",
		Description: "Finish Flash Download",
		Payload:     "One 32-bit word: 0 to reboot, 1 to run user code. Not necessary to send this command if you wish to stay in the loader",
	},
	CmdMemBegin: {
		Opcode:      CmdMemBegin,
		Name:        "MEM_BEGIN",
		Description: "Begin RAM Download Start",
		Payload:     "Total size, number of data packets, data size in one packet, memory offset",
	},
	CmdMemEnd: {
		Opcode:      CmdMemEnd,
		Name:        "MEM_END",
		Description: "Finish RAM Download",
		Payload:     "Two 32-bit words: execute flag, entry point address",
	},
	CmdMemData: {
		Opcode:      CmdMemData,
		Name:        "MEM_DATA",
		Description: "RAM Download Data",
		Payload:     "Four 32-bit words: data size, sequence number, 0, 0, then data. Uses Checksum.",
	},
	CmdSync: {
		Opcode:      CmdSync,
		Name:        "SYNC",
		Description: "Sync Frame",
		Payload:     "36 bytes: 0x07 0x07 0x12 0x20, followed by 32 x 0x55",
	},
	CmdWriteReg: {
		Opcode:      CmdWriteReg,
		Name:        "WRITE_REG",
		Description: "Write 32-bit memory address",
		Payload:     "Four 32-bit words: address, value, mask and delay (in microseconds)",
	},
	CmdReadReg: {
		Opcode:      CmdReadReg,
		Name:        "READ_REG",
		Description: "Read 32-bit memory address",
		Payload:     "Address as 32-bit word\n\nRead data as 32-bit word in value field.",
	},
	CmdSpiSetParams: {
		Opcode:      CmdSpiSetParams,
		Name:        "SPI_SET_PARAMS",
		Description: "Configure SPI flash",
		Payload:     "Six 32-bit words: id, total size in bytes, block size, sector size, page size, status mask.",
	},
	CmdSpiAttach: {
		Opcode:      CmdSpiAttach,
		Name:        "SPI_ATTACH",
		Description: "Attach SPI flash",
		Payload:     "32-bit word: Zero for normal SPI flash. A second 32-bit word (should be 0) is passed to ROM loader only.",
	},
	CmdChangeBaudrate: {
		Opcode:      CmdChangeBaudrate,
		Name:        "CHANGE_BAUDRATE",
		Description: "Change Baud rate",
		Payload:     "Two 32-bit words: new baud rate, 0 if we are talking to the ROM loader or the current/old baud rate if we are talking to the stub loader.",
	},
	CmdFlashDeflBegin: {
		Opcode:      CmdFlashDeflBegin,
		Name:        "FLASH_DEFL_BEGIN",
		Description: "Begin compressed flash download",
		Payload:     "Four 32-bit words: uncompressed size, number of data packets, data packet size, flash offset. With stub loader the uncompressed size is exact byte count to be written, whereas on ROM bootloader it is rounded up to flash erase block size. A fifth 32-bit word passed to ROM loader only: 1 to begin encrypted flash, 0 to not.",
	},
	CmdFlashDeflData: {
		Opcode:      CmdFlashDeflData,
		Name:        "FLASH_DEFL_DATA",
		Description: "Compressed flash download data",
		Payload:     "Four 32-bit words: data size, sequence number, 0, 0, then data. Uses Checksum.\n\nError code 0xC1 on checksum error.",
	},
	CmdFlashDeflEnd: {
		Opcode:      CmdFlashDeflEnd,
		Name:        "FLASH_DEFL_END",
		Description: "End compressed flash download",
		Payload:     "One 32-bit word: 0 to reboot, 1 to run user code. Not necessary to send this command if you wish to stay in the loader.",
	},
	CmdSpiFlashMD5: {
		Opcode:      CmdSpiFlashMD5,
		Name:        "SPI_FLASH_MD5",
		Description: "Calculate MD5 of flash region",
		Payload:     "Four 32-bit words: address, size, 0, 0\n\nBody contains 16 raw bytes of MD5 followed by 2 status bytes (stub loader) or 32 hex-coded ASCII (ROM loader) of calculated MD5",
	},
	CmdGetSecurityInfo: {
		Opcode:      CmdGetSecurityInfo,
		Name:        "GET_SECURITY_INFO",
		Description: "Read chip security info",
		Payload:     "32 bits flags, 1 byte flash_crypt_cnt, 7x1 byte key_purposes, 32-bit word chip_id, 32-bit word eco_version",
	},
	CmdEraseFlash: {
		Opcode:      CmdEraseFlash,
		Name:        "ERASE_FLASH",
		Description: "Erase entire flash chip",
		StubOnly:    true,
	},
	CmdEraseRegion: {
		Opcode:      CmdEraseRegion,
		Name:        "ERASE_REGION",
		Description: "Erase flash region",
		Payload:     "Two 32-bit words: flash offset to erase, erase size in bytes. Both must be multiples of flash sector size.",
		StubOnly:    true,
	},
	CmdReadFlash: {
		Opcode:      CmdReadFlash,
		Name:        "READ_FLASH",
		Description: "Read flash",
		Payload:     "Four 32-bit words: flash offset, read length, flash sector size, read packet size, maximum number of un-acked packets",
		StubOnly:    true,
	},
	CmdRunUserCode: {
		Opcode:      CmdRunUserCode,
		Name:        "RUN_USER_CODE",
		Description: "Exits loader and runs user code",
		StubOnly:    true,
	},
}

// LookupCommand returns the descriptor for an opcode.
// A miss is normal: vendor or newer loaders use opcodes not listed here.
func LookupCommand(opcode uint8) (*CommandDescriptor, bool) {
	c, ok := commandTable[opcode]
	return c, ok
}

// Commands returns all known descriptors ordered by opcode
func Commands() []*CommandDescriptor {
	out := make([]*CommandDescriptor, 0, len(commandTable))
	for _, c := range commandTable {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Opcode < out[j].Opcode })
	return out
}
