package core

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const idRandomLength = 16

// IDGenerator returns a new identifier for prefix.
type IDGenerator func(prefix string) string

// GenerateID returns prefix followed by 16 random alphanumeric characters.
func GenerateID(prefix string) string {
	out := make([]byte, idRandomLength)
	limit := big.NewInt(int64(len(idAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic("core: crypto random source unavailable: " + err.Error())
		}
		out[i] = idAlphabet[n.Int64()]
	}
	return prefix + string(out)
}

// GenerateSecret returns a hex encoded 16 byte secret.
func GenerateSecret() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("core: crypto random source unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
