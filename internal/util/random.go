package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// HexCode returns n random bytes as an uppercase hex string (2n characters).
func HexCode(n int) (string, error) {
	byt := make([]byte, n)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// NewBookingNumber generates a booking identifier of the form BKG-XXXXXXXX.
func NewBookingNumber() (string, error) {
	code, err := HexCode(4)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("BKG-%s", code), nil
}

// NewTicketNumber generates a ticket identifier of the form TKT-XXXXXXXX.
func NewTicketNumber() (string, error) {
	code, err := HexCode(4)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TKT-%s", code), nil
}
