package persist

import (
	"bytes"

	"github.com/vmihailenco/msgpack"
)

// PackData packs a snapshot state or event payload to bytes in MessagePack
// format
func PackData(data interface{}) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := msgpack.NewEncoder(&buffer)
	err := encoder.Encode(data)
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// UnpackData unpacks bytes in MessagePack format into data
func UnpackData(blob []byte, data interface{}) error {
	return msgpack.Unmarshal(blob, data)
}
