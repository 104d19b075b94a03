package session

import "crypto/rand"

// codeAlphabet drops visually confusable characters (I, L, O, 0, 1) so codes
// survive being read aloud or scribbled on a napkin.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 6

func NewCode() string {
	buf := make([]byte, codeLength)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}
