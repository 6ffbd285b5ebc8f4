package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeBytesStripsBOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("nombre,nota")...)
	assert.Equal(t, "nombre,nota", DecodeBytes(raw))
}

func TestDecodeBytesLatin1Fallback(t *testing.T) {
	// "Pérez" encoded as Latin-1: é is a lone 0xE9 byte, invalid UTF-8.
	raw := []byte{'P', 0xE9, 'r', 'e', 'z'}
	assert.Equal(t, "Pérez", DecodeBytes(raw))
}

func TestRepairMojibake(t *testing.T) {
	assert.Equal(t, "Matemáticas", RepairMojibake("MatemÃ¡ticas"))
	assert.Equal(t, "Pérez Muñoz", RepairMojibake("PÃ©rez MuÃ±oz"))
}

func TestRepairMojibakeLeavesCleanTextAlone(t *testing.T) {
	assert.Equal(t, "Matemáticas", RepairMojibake("Matemáticas"))
	assert.Equal(t, "plain ascii", RepairMojibake("plain ascii"))
	assert.Equal(t, "", RepairMojibake(""))
}
