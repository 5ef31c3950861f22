package schema

import "fmt"

// Wire types, packed into the low 3 bits of a one-byte tag alongside the
// field number in the high bits — field numbers in this schema never
// exceed 31, so a single byte suffices (see the Encode* functions below:
// Project{1,2}, Request{1}, Response{1,2,10}).
const (
	wireVarint = 0
	wireBytes  = 2
)

func tagByte(fieldNum int, wireType byte) byte {
	return byte(fieldNum<<3) | wireType
}

func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func readVarint(data []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, b := range data {
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, i + 1, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, fmt.Errorf("schema: varint too long")
		}
	}
	return 0, 0, fmt.Errorf("schema: truncated varint")
}

func appendString(buf []byte, fieldNum int, s string) []byte {
	buf = append(buf, tagByte(fieldNum, wireBytes))
	buf = appendVarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendVarintField(buf []byte, fieldNum int, v uint64) []byte {
	buf = append(buf, tagByte(fieldNum, wireVarint))
	return appendVarint(buf, v)
}

func appendMessage(buf []byte, fieldNum int, nested []byte) []byte {
	buf = append(buf, tagByte(fieldNum, wireBytes))
	buf = appendVarint(buf, uint64(len(nested)))
	return append(buf, nested...)
}

// field is one decoded (fieldNum, wireType, raw-value) triple. For
// wireBytes the raw value is the length-delimited payload with the
// length prefix already stripped; for wireVarint the decoded integer is
// in varint and bytes is unset.
type field struct {
	num     int
	wt      byte
	bytes   []byte
	varint  uint64
}

// decodeFields walks data tag-by-tag, generically parsing each field by
// its wire type regardless of whether the field number is recognized —
// this is what makes unknown fields skippable rather than fatal.
func decodeFields(data []byte, fn func(field) error) error {
	for len(data) > 0 {
		tag := data[0]
		data = data[1:]
		num := int(tag >> 3)
		wt := tag & 0x7

		switch wt {
		case wireVarint:
			v, n, err := readVarint(data)
			if err != nil {
				return err
			}
			data = data[n:]
			if err := fn(field{num: num, wt: wt, varint: v}); err != nil {
				return err
			}
		case wireBytes:
			l, n, err := readVarint(data)
			if err != nil {
				return err
			}
			data = data[n:]
			if uint64(len(data)) < l {
				return fmt.Errorf("schema: truncated length-delimited field %d", num)
			}
			payload := data[:l]
			data = data[l:]
			if err := fn(field{num: num, wt: wt, bytes: payload}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("schema: unsupported wire type %d on field %d", wt, num)
		}
	}
	return nil
}

// ─── Project ──────────────────────────────────────────────────────────────

// EncodeProject encodes a Project: { 1: name; 2: path }.
func EncodeProject(p Project) []byte {
	var buf []byte
	buf = appendString(buf, 1, p.Name)
	buf = appendString(buf, 2, p.Path)
	return buf
}

// DecodeProject decodes a Project, ignoring unknown fields.
func DecodeProject(data []byte) (Project, error) {
	var p Project
	err := decodeFields(data, func(f field) error {
		switch f.num {
		case 1:
			p.Name = string(f.bytes)
		case 2:
			p.Path = string(f.bytes)
		}
		return nil
	})
	return p, err
}

// ─── Request ──────────────────────────────────────────────────────────────

// EncodeRequest encodes a Request: { oneof payload { 1: ListProjects {} } }.
func EncodeRequest(r Request) []byte {
	var buf []byte
	if r.ListProjects != nil {
		buf = appendMessage(buf, 1, nil)
	}
	return buf
}

// DecodeRequest decodes a Request, ignoring unknown fields.
func DecodeRequest(data []byte) (Request, error) {
	var r Request
	err := decodeFields(data, func(f field) error {
		switch f.num {
		case 1:
			r.ListProjects = &RequestListProjects{}
		}
		return nil
	})
	return r, err
}

// ─── ResponseListProjects ───────────────────────────────────────────────────

func encodeResponseListProjects(v ResponseListProjects) []byte {
	var buf []byte
	for _, p := range v.Projects {
		buf = appendMessage(buf, 1, EncodeProject(p))
	}
	return buf
}

func decodeResponseListProjects(data []byte) (ResponseListProjects, error) {
	var v ResponseListProjects
	err := decodeFields(data, func(f field) error {
		if f.num == 1 {
			p, err := DecodeProject(f.bytes)
			if err != nil {
				return err
			}
			v.Projects = append(v.Projects, p)
		}
		return nil
	})
	return v, err
}

// ─── Response ─────────────────────────────────────────────────────────────

// EncodeResponse encodes a Response:
// { 1: status; 2: error; oneof body { 10: ListProjects } }.
func EncodeResponse(r Response) []byte {
	var buf []byte
	buf = appendVarintField(buf, 1, uint64(r.Status))
	if r.Error != "" {
		buf = appendString(buf, 2, r.Error)
	}
	if r.ListProjects != nil {
		buf = appendMessage(buf, 10, encodeResponseListProjects(*r.ListProjects))
	}
	return buf
}

// DecodeResponse decodes a Response, ignoring unknown fields.
func DecodeResponse(data []byte) (Response, error) {
	var r Response
	err := decodeFields(data, func(f field) error {
		switch f.num {
		case 1:
			r.Status = Status(f.varint)
		case 2:
			r.Error = string(f.bytes)
		case 10:
			lp, err := decodeResponseListProjects(f.bytes)
			if err != nil {
				return err
			}
			r.ListProjects = &lp
		}
		return nil
	})
	return r, err
}

// ─── Update ───────────────────────────────────────────────────────────────

// EncodeUpdate encodes an Update. No fields are defined yet.
func EncodeUpdate(Update) []byte {
	return nil
}

// DecodeUpdate decodes an Update, ignoring every field (none are known).
func DecodeUpdate(data []byte) (Update, error) {
	var u Update
	err := decodeFields(data, func(field) error { return nil })
	return u, err
}
