// Package json provides high-performance JSON serialization built on
// goccy/go-json with pooled buffers for the hot request path.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// Marshal serializes v to JSON
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalIndent serializes v to indented JSON
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal deserializes JSON data into v
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// NewEncoder returns a JSON encoder writing to w with HTML escaping disabled
func NewEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// NewDecoder returns a JSON decoder reading from r
func NewDecoder(r io.Reader) *gojson.Decoder {
	return gojson.NewDecoder(r)
}

// EncodeTo serializes v into w using a pooled intermediate buffer so partial
// writes never reach w after an encoding failure.
func EncodeTo(w io.Writer, v interface{}) error {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if err := NewEncoder(buf).Encode(v); err != nil {
		return err
	}

	_, err := w.Write(buf.Bytes())
	return err
}
