package localca

import (
	"encoding/hex"
	"errors"
	"io"
	"math/big"
	"strings"
)

const (
	serialOctets      = 8
	maxSerialAttempts = 32
)

var ErrSerialExhausted = errors.New("local-ca: serial number attempts exhausted")

// SerialNumber is a freshly drawn certificate serial: 8 random octets
// carried both as a big integer for x509 templates and as the 16
// character hex form written to the serial file and the database.
type SerialNumber struct {
	value *big.Int
	hex   string
}

// NewSerialNumber draws from random until the hex encoding does not
// begin with '0', the same constraint openssl places on serial files.
// The retry loop is bounded; a reader that never produces an
// acceptable value surfaces as ErrSerialExhausted instead of spinning.
func NewSerialNumber(random io.Reader) (SerialNumber, error) {
	buf := make([]byte, serialOctets)
	for attempt := 0; attempt < maxSerialAttempts; attempt++ {
		if _, err := io.ReadFull(random, buf); err != nil {
			return SerialNumber{}, err
		}
		encoded := strings.ToUpper(hex.EncodeToString(buf))
		if encoded[0] == '0' {
			continue
		}
		return SerialNumber{
			value: new(big.Int).SetBytes(buf),
			hex:   encoded,
		}, nil
	}
	return SerialNumber{}, ErrSerialExhausted
}

func (sn SerialNumber) BigInt() *big.Int {
	return sn.value
}

func (sn SerialNumber) Hex() string {
	return sn.hex
}

func (sn SerialNumber) String() string {
	return sn.hex
}
