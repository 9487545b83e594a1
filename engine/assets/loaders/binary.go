package loaders

import (
	"os"

	"github.com/cockroachdb/errors"
)

const spirvMagic uint32 = 0x07230203

// LoadSPIRV reads a compiled shader module.
func LoadSPIRV(path string) ([]uint32, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", path)
	}
	code, err := ParseSPIRV(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %s", path)
	}
	return code, nil
}

// ParseSPIRV converts little endian SPIR-V bytes to words.
func ParseSPIRV(buf []byte) ([]uint32, error) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, errors.Newf("invalid SPIR-V size %d", len(buf))
	}
	code := bytesToBytecode(buf)
	if code[0] != spirvMagic {
		return nil, errors.Newf("invalid SPIR-V magic 0x%08x", code[0])
	}
	return code, nil
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}
