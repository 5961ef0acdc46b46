// Package audio holds the wire helpers for telephony audio payloads. Payload bytes are
// never resampled or transcoded here; callers get back exactly what the peer sent.
package audio

import (
	"encoding/base64"
)

func Base64ToBytes(base64String string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64String)
}

func BytesToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
