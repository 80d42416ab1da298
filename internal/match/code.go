package match

import (
	"crypto/rand"
	"math/big"
)

// CodeAlphabet leaves out 0, O, 1 and I so codes can be read aloud and typed.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const CodeLength = 6

func GenerateCode() (string, error) {
	code := make([]byte, CodeLength)
	n := big.NewInt(int64(len(CodeAlphabet)))
	for i := range code {
		num, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		code[i] = CodeAlphabet[num.Int64()]
	}
	return string(code), nil
}
