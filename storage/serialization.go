// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring"
	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/rankit/core"
)

// MarshalBitmap serializes a bitmap in the portable roaring format.
func MarshalBitmap(bm *roaring.Bitmap) ([]byte, error) {
	data, err := bm.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalBitmap deserializes a bitmap. The data is copied.
func UnmarshalBitmap(data []byte) (*roaring.Bitmap, error) {
	bm := roaring.New()
	if err := bm.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return bm, nil
}

// EncodeFloat encodes f so that the byte order of encodings matches the
// numeric order of values.
func EncodeFloat(f float64) []byte {
	buf := make([]byte, 8)
	PutFloat(buf, f)
	return buf
}

// PutFloat writes the order-preserving encoding of f into buf.
func PutFloat(buf []byte, f float64) {
	if f == 0 {
		f = 0 // folds negative zero
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) == 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	binary.BigEndian.PutUint64(buf, bits)
}

// DecodeFloat reverses EncodeFloat.
func DecodeFloat(buf []byte) (float64, error) {
	if len(buf) < 8 {
		return 0, ErrTruncatedData
	}
	bits := binary.BigEndian.Uint64(buf)
	if bits&(1<<63) != 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), nil
}

// SettingsMUS is the MUS serializer of core.Settings.
var SettingsMUS = settingsMUS{}

// DocumentMUS is the MUS serializer of core.Document.
var DocumentMUS = documentMUS{}

var (
	_ mus.Serializer[core.Settings] = SettingsMUS
	_ mus.Serializer[core.Document] = DocumentMUS
)

type settingsMUS struct{}

func (s settingsMUS) Marshal(v core.Settings, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(len(v.Fields)), bs)
	for _, f := range v.Fields {
		n += varint.Uint64.Marshal(uint64(f.ID), bs[n:])
		n += ord.String.Marshal(f.Name, bs[n:])
		n += ord.Bool.Marshal(f.Searchable, bs[n:])
	}
	n += varint.Uint64.Marshal(uint64(v.OneTypoWordLen), bs[n:])
	n += varint.Uint64.Marshal(uint64(v.TwoTypoWordLen), bs[n:])
	n += varint.Uint64.Marshal(uint64(len(v.RankingRules)), bs[n:])
	for _, rule := range v.RankingRules {
		n += ord.String.Marshal(rule, bs[n:])
	}
	return n
}

func (s settingsMUS) Unmarshal(bs []byte) (v core.Settings, n int, err error) {
	r := &musReader{bs: bs}
	count := r.length()
	for i := 0; i < count && r.err == nil; i++ {
		id := r.uint64()
		name := r.string()
		searchable := r.bool()
		v.Fields = append(v.Fields, core.Field{ID: core.FieldID(id), Name: name, Searchable: searchable})
	}
	v.OneTypoWordLen = uint8(r.uint64())
	v.TwoTypoWordLen = uint8(r.uint64())
	count = r.length()
	for i := 0; i < count && r.err == nil; i++ {
		v.RankingRules = append(v.RankingRules, r.string())
	}
	return v, r.n, r.err
}

func (s settingsMUS) Size(v core.Settings) (size int) {
	size = varint.Uint64.Size(uint64(len(v.Fields)))
	for _, f := range v.Fields {
		size += varint.Uint64.Size(uint64(f.ID))
		size += ord.String.Size(f.Name)
		size += ord.Bool.Size(f.Searchable)
	}
	size += varint.Uint64.Size(uint64(v.OneTypoWordLen))
	size += varint.Uint64.Size(uint64(v.TwoTypoWordLen))
	size += varint.Uint64.Size(uint64(len(v.RankingRules)))
	for _, rule := range v.RankingRules {
		size += ord.String.Size(rule)
	}
	return size
}

func (s settingsMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

type documentMUS struct{}

func (d documentMUS) Marshal(v core.Document, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(v.ID), bs)
	n += varint.Uint64.Marshal(uint64(len(v.Words)), bs[n:])
	for _, fid := range sortedFields(v.Words) {
		words := v.Words[fid]
		n += varint.Uint64.Marshal(uint64(fid), bs[n:])
		n += varint.Uint64.Marshal(uint64(len(words)), bs[n:])
		for _, w := range words {
			n += ord.String.Marshal(w, bs[n:])
		}
	}
	n += varint.Uint64.Marshal(uint64(len(v.Numbers)), bs[n:])
	for _, fid := range sortedFields(v.Numbers) {
		n += varint.Uint64.Marshal(uint64(fid), bs[n:])
		n += varint.Uint64.Marshal(math.Float64bits(v.Numbers[fid]), bs[n:])
	}
	n += varint.Uint64.Marshal(uint64(len(v.Strings)), bs[n:])
	for _, fid := range sortedFields(v.Strings) {
		n += varint.Uint64.Marshal(uint64(fid), bs[n:])
		n += ord.String.Marshal(v.Strings[fid], bs[n:])
	}
	return n
}

func (d documentMUS) Unmarshal(bs []byte) (v core.Document, n int, err error) {
	r := &musReader{bs: bs}
	v.ID = core.DocumentID(r.uint64())
	if count := r.length(); count > 0 {
		v.Words = make(map[core.FieldID][]string, count)
		for i := 0; i < count && r.err == nil; i++ {
			fid := core.FieldID(r.uint64())
			words := make([]string, 0, min(r.length(), len(bs)))
			for j := cap(words); j > 0 && r.err == nil; j-- {
				words = append(words, r.string())
			}
			v.Words[fid] = words
		}
	}
	if count := r.length(); count > 0 {
		v.Numbers = make(map[core.FieldID]float64, count)
		for i := 0; i < count && r.err == nil; i++ {
			fid := core.FieldID(r.uint64())
			v.Numbers[fid] = math.Float64frombits(r.uint64())
		}
	}
	if count := r.length(); count > 0 {
		v.Strings = make(map[core.FieldID]string, count)
		for i := 0; i < count && r.err == nil; i++ {
			fid := core.FieldID(r.uint64())
			v.Strings[fid] = r.string()
		}
	}
	return v, r.n, r.err
}

func (d documentMUS) Size(v core.Document) (size int) {
	size = varint.Uint64.Size(uint64(v.ID))
	size += varint.Uint64.Size(uint64(len(v.Words)))
	for fid, words := range v.Words {
		size += varint.Uint64.Size(uint64(fid))
		size += varint.Uint64.Size(uint64(len(words)))
		for _, w := range words {
			size += ord.String.Size(w)
		}
	}
	size += varint.Uint64.Size(uint64(len(v.Numbers)))
	for fid, value := range v.Numbers {
		size += varint.Uint64.Size(uint64(fid))
		size += varint.Uint64.Size(math.Float64bits(value))
	}
	size += varint.Uint64.Size(uint64(len(v.Strings)))
	for fid, value := range v.Strings {
		size += varint.Uint64.Size(uint64(fid))
		size += ord.String.Size(value)
	}
	return size
}

func (d documentMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = d.Unmarshal(bs)
	return n, err
}

func sortedFields[V any](m map[core.FieldID]V) []core.FieldID {
	fields := make([]core.FieldID, 0, len(m))
	for fid := range m {
		fields = append(fields, fid)
	}
	slices.Sort(fields)
	return fields
}

// musReader unmarshals consecutive values, keeping the first error.
type musReader struct {
	bs  []byte
	n   int
	err error
}

func (r *musReader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.fail(err)
	return v
}

// length reads a collection length, rejecting lengths the remaining input
// cannot hold.
func (r *musReader) length() int {
	v := r.uint64()
	if r.err == nil && v > uint64(len(r.bs)-r.n) {
		r.err = ErrTruncatedData
		return 0
	}
	return int(v)
}

func (r *musReader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	r.fail(err)
	return v
}

func (r *musReader) bool() bool {
	if r.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(r.bs[r.n:])
	r.n += n
	r.fail(err)
	return v
}

func (r *musReader) fail(err error) {
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
}

// MarshalSettings serializes Settings to bytes.
func MarshalSettings(settings *core.Settings) []byte {
	buf := make([]byte, SettingsMUS.Size(*settings))
	SettingsMUS.Marshal(*settings, buf)
	return buf
}

// UnmarshalSettings deserializes Settings from bytes.
func UnmarshalSettings(data []byte) (*core.Settings, error) {
	settings, _, err := SettingsMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	buf := make([]byte, DocumentMUS.Size(*doc))
	DocumentMUS.Marshal(*doc, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	doc, _, err := DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
