// Package persist provides codec-based file persistence for derived inputs
// such as the co-occurrence cache.
package persist

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// File extensions for supported codecs.
const (
	jsonExtension = ".json"
	gobExtension  = ".gob"
	lz4Extension  = ".lz4"
)

const defaultIndent = "  "

// Codec serialises one state value per stream.
type Codec interface {
	Encode(w io.Writer, state any) error
	// Decode fills state, which must be a pointer.
	Decode(r io.Reader, state any) error
	// Extension is the conventional file suffix, e.g. ".gob.lz4".
	Extension() string
}

// JSONCodec encodes state as JSON. An empty Indent writes compact JSON.
type JSONCodec struct {
	Indent string
}

// NewJSONCodec returns a JSON codec indenting with two spaces.
func NewJSONCodec() *JSONCodec { return &JSONCodec{Indent: defaultIndent} }

func (c *JSONCodec) Encode(w io.Writer, state any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", c.Indent)

	return wrap("json encode", enc.Encode(state))
}

func (c *JSONCodec) Decode(r io.Reader, state any) error {
	return wrap("json decode", json.NewDecoder(r).Decode(state))
}

func (c *JSONCodec) Extension() string { return jsonExtension }

// GobCodec encodes state with encoding/gob.
type GobCodec struct{}

func NewGobCodec() *GobCodec { return &GobCodec{} }

func (c *GobCodec) Encode(w io.Writer, state any) error {
	return wrap("gob encode", gob.NewEncoder(w).Encode(state))
}

func (c *GobCodec) Decode(r io.Reader, state any) error {
	return wrap("gob decode", gob.NewDecoder(r).Decode(state))
}

func (c *GobCodec) Extension() string { return gobExtension }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", op, err)
}

// LZ4Codec wraps another codec in an LZ4 frame. Dense float matrices with
// many zero cells shrink considerably.
type LZ4Codec struct {
	inner Codec
}

// NewLZ4Codec wraps inner with LZ4 frame compression.
func NewLZ4Codec(inner Codec) *LZ4Codec {
	return &LZ4Codec{inner: inner}
}

// Encode implements Codec.Encode.
func (c *LZ4Codec) Encode(w io.Writer, state any) error {
	zw := lz4.NewWriter(w)

	err := c.inner.Encode(zw, state)
	if err != nil {
		return err
	}

	return wrap("lz4 close", zw.Close())
}

// Decode implements Codec.Decode.
func (c *LZ4Codec) Decode(r io.Reader, state any) error {
	return wrap("lz4 frame", c.inner.Decode(lz4.NewReader(r), state))
}

// Extension implements Codec.Extension; the inner extension is kept, e.g. ".gob.lz4".
func (c *LZ4Codec) Extension() string { return c.inner.Extension() + lz4Extension }

// ForPath picks a codec from a file name: ".json", ".gob", or ".lz4"
// (gob inside an LZ4 frame). Unknown extensions get the LZ4 gob codec.
func ForPath(path string) Codec {
	switch {
	case strings.HasSuffix(path, jsonExtension):
		return NewJSONCodec()
	case strings.HasSuffix(path, gobExtension):
		return NewGobCodec()
	default:
		return NewLZ4Codec(NewGobCodec())
	}
}

// SaveFile encodes state into the file at path, replacing it.
func SaveFile(path string, codec Codec, state any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}

	err = codec.Encode(file, state)
	if err != nil {
		file.Close()

		return fmt.Errorf("encode state: %w", err)
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("close state file: %w", err)
	}

	return nil
}

// LoadFile decodes the file at path into state, which must be a pointer.
func LoadFile(path string, codec Codec, state any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	err = codec.Decode(file, state)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	return nil
}
