package modbuscomm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidPoint is returned for a point that cannot be read.
var ErrInvalidPoint = errors.New("modbuscomm: invalid point")

// Table is the Modbus data table a point is read from.
type Table string

// Constants of Table
const (
	coil          Table = "coil"
	discreteInput Table = "discrete"
	holding       Table = "holding"
	input         Table = "input"
)

// DataType defines the width of a register for bit extraction
type DataType string

// Constants of DataType
const (
	u16 DataType = "u16"
	u32 DataType = "u32"
)

// Endian byte order of Modbus register for decoding
type Endian string

// Constants of Endian
const (
	littleEndian Endian = "little"
	bigEndian    Endian = "big"
)

// Point maps one Modbus bit to the open state of a switch. A set bit means
// closed unless OpenWhenSet.
type Point struct {
	Switch      string   `json:"Switch"`
	Table       Table    `json:"Table"`
	Address     uint16   `json:"Address"`
	DataType    DataType `json:"DataType"`
	Endianness  Endian   `json:"Endianness"`
	Bit         uint8    `json:"Bit"`
	OpenWhenSet bool     `json:"OpenWhenSet"`
}

func (p Point) validate() error {
	switch p.Table {
	case coil, discreteInput:
		if p.Bit != 0 {
			return fmt.Errorf("%w: %s: bit %d on a single %s", ErrInvalidPoint, p.Switch, p.Bit, p.Table)
		}
	case holding, input:
		if p.Bit >= uint8(16*sizeOf(p.DataType)) {
			return fmt.Errorf("%w: %s: bit %d out of %s", ErrInvalidPoint, p.Switch, p.Bit, p.DataType)
		}
	default:
		return fmt.Errorf("%w: %s: unknown table %q", ErrInvalidPoint, p.Switch, p.Table)
	}
	if p.Switch == "" {
		return fmt.Errorf("%w: no switch id", ErrInvalidPoint)
	}
	return nil
}

// isOpen turns the response of a read into the switch state.
func (p Point) isOpen(resp []byte) (bool, error) {
	var set bool
	switch p.Table {
	case coil, discreteInput:
		if len(resp) < 1 {
			return false, fmt.Errorf("%w: %s: empty response", ErrInvalidPoint, p.Switch)
		}
		set = resp[0]&0x01 == 1
	default:
		if len(resp) < int(2*sizeOf(p.DataType)) {
			return false, fmt.Errorf("%w: %s: short response (%d bytes)", ErrInvalidPoint, p.Switch, len(resp))
		}
		set = decode(resp, p)>>p.Bit&0x01 == 1
	}
	return set == p.OpenWhenSet, nil
}

// decode coverts register bytes into an unsigned word
func decode(bytes []byte, p Point) uint32 {
	endian := getByteOrder(p.Endianness)
	switch p.DataType {
	case u32:
		return endian.Uint32(bytes)
	default:
		return uint32(endian.Uint16(bytes))
	}
}

// getByteOrder returns the correct binary.endian object for the register type
func getByteOrder(e Endian) binary.ByteOrder {
	switch e {
	case bigEndian:
		return binary.BigEndian
	case littleEndian:
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// sizeOf returns the number of u16 registers for the datatype
func sizeOf(t DataType) uint16 {
	switch t {
	case u32:
		return 2
	default:
		return 1
	}
}
