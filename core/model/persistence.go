package model

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// EncodeState はモデルの内部状態（エクスポートされたスナップショット構造体）をgobでエンコードする
func EncodeState(state interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, errors.Wrap(err, "failed to encode model state")
	}
	return buf.Bytes(), nil
}

// DecodeState はEncodeStateで作ったバイト列をstate（ポインタ）に復元する
func DecodeState(data []byte, state interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(state); err != nil {
		return errors.Wrap(err, "failed to decode model state")
	}
	return nil
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(m Persistable, w io.Writer) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "failed to write model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m Persistable, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "failed to read model")
	}
	return m.UnmarshalBinary(data)
}
