// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package encoding

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"

	"github.com/juju/errors"
)

// MaxFrameSize bounds a single frame so that a corrupted cache object fails fast instead
// of allocating an arbitrary amount of memory.
const MaxFrameSize = 1 << 30

// WriteString writes a length-prefixed string.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

func ReadString(r io.Reader) (string, error) {
	data, err := ReadBytes(r)
	return string(data), err
}

// WriteBytes writes a frame: a little-endian uint32 length followed by data.
func WriteBytes(w io.Writer, data []byte) error {
	if len(data) > MaxFrameSize {
		return errors.Errorf("frame of %d bytes exceeds %d bytes", len(data), MaxFrameSize)
	}
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := w.Write(header[:]); err != nil {
		return errors.Trace(err)
	}
	_, err := w.Write(data)
	return errors.Trace(err)
}

// ReadBytes reads a frame written by WriteBytes.
func ReadBytes(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errors.Trace(err)
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, errors.Errorf("frame of %d bytes exceeds %d bytes", size, MaxFrameSize)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Annotatef(err, "read frame of %d bytes", size)
	}
	return data, nil
}

// WriteGob writes a gob-encoded value as one frame, so a reader can skip values it does
// not understand.
func WriteGob(w io.Writer, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return errors.Trace(err)
	}
	return WriteBytes(w, buf.Bytes())
}

func ReadGob(r io.Reader, v any) error {
	data, err := ReadBytes(r)
	if err != nil {
		return err
	}
	return errors.Trace(gob.NewDecoder(bytes.NewReader(data)).Decode(v))
}
