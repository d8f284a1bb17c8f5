package utils

import (
	"bytes"

	"golang.org/x/text/transform"

	"github.com/nifkit/nifkit/config"
)

// BytesToString decodes a zero-terminated byte string using the configured
// charmap (NIF names carry no encoding marker).
func BytesToString(bs []byte) string {
	n := bytes.IndexByte(bs, 0)
	if n < 0 {
		n = len(bs)
	}

	s, _, err := transform.Bytes(config.GetEncoding().NewDecoder(), bs[0:n])
	if err != nil {
		panic(err)
	}

	return string(s)
}

func StringToBytes(s string, nilTerminate bool) []byte {
	bs, _, err := transform.Bytes(config.GetEncoding().NewEncoder(), []byte(s))
	if err != nil {
		panic(err)
	}

	if nilTerminate {
		bs = append(bs, 0)
	}
	return bs
}

func FloatArray32to64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
