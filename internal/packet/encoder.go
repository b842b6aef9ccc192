package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// encodeBufferSizes is the buffer-size ladder spec §4.1 specifies: the
// encoder tries each in turn, retrying at the next size on overflow.
var encodeBufferSizes = []int{512, 8192 + 2, 16384 + 2, 65536 + 2}

var errBufferOverflow = errors.New("packet: encode buffer overflow")

// EncodeMessage encodes a full DNS message to wire format, retrying at
// successively larger buffers on overflow (spec §4.1 "Encode buffer
// sizing"). Domain-name compression (spec §4.1) is applied fresh at
// each attempt since a smaller attempt's compression offsets are not
// valid in a later, differently-sized buffer.
func EncodeMessage(m *Message) ([]byte, error) {
	var lastErr error
	for _, size := range encodeBufferSizes {
		e := newEncoder(size)
		if err := e.encodeMessage(m); err != nil {
			if errors.Is(err, errBufferOverflow) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return e.buf[:e.off], nil
	}
	return nil, fmt.Errorf("%w: %v", ErrMessageTooLarge, lastErr)
}

// encoder writes one message attempt into a fixed-capacity buffer,
// tracking a suffix->offset compression map the way the teacher's
// Parser tracks decode state, but for the write direction.
type encoder struct {
	buf      []byte
	off      int
	compress map[string]int
}

func newEncoder(size int) *encoder {
	return &encoder{
		buf:      make([]byte, size),
		compress: make(map[string]int),
	}
}

func (e *encoder) reserve(n int) error {
	if e.off+n > len(e.buf) {
		return errBufferOverflow
	}
	return nil
}

func (e *encoder) writeByte(b byte) error {
	if err := e.reserve(1); err != nil {
		return err
	}
	e.buf[e.off] = b
	e.off++
	return nil
}

func (e *encoder) writeBytes(b []byte) error {
	if err := e.reserve(len(b)); err != nil {
		return err
	}
	copy(e.buf[e.off:], b)
	e.off += len(b)
	return nil
}

func (e *encoder) writeU16(v uint16) error {
	if err := e.reserve(2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(e.buf[e.off:], v)
	e.off += 2
	return nil
}

func (e *encoder) writeU32(v uint32) error {
	if err := e.reserve(4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(e.buf[e.off:], v)
	e.off += 4
	return nil
}

func (e *encoder) writeCharString(s string) error {
	if len(s) > 255 {
		return fmt.Errorf("packet: char-string exceeds 255 bytes")
	}
	if err := e.writeByte(byte(len(s))); err != nil {
		return err
	}
	return e.writeBytes([]byte(s))
}

// encodeName writes a domain name, compressing against every suffix
// already written by an earlier name in this same message (spec §4.1).
func (e *encoder) encodeName(name string) error {
	labels := SplitLabels(name)

	for i := 0; i < len(labels); i++ {
		suffix := strings.ToLower(strings.Join(labels[i:], ".")) + "."
		if off, ok := e.compress[suffix]; ok {
			return e.writePointer(off)
		}
		if e.off <= 0x3FFF {
			e.compress[suffix] = e.off
		}
		if err := e.writeLabel(labels[i]); err != nil {
			return err
		}
	}
	return e.writeByte(0)
}

func (e *encoder) writeLabel(label string) error {
	if len(label) == 0 {
		return fmt.Errorf("%w: empty label", ErrBadLabel)
	}
	if len(label) > MaxLabelLength {
		return fmt.Errorf("%w: %d bytes", ErrLabelTooLong, len(label))
	}
	if err := e.writeByte(byte(len(label))); err != nil {
		return err
	}
	return e.writeBytes([]byte(label))
}

func (e *encoder) writePointer(offset int) error {
	return e.writeU16(0xC000 | uint16(offset))
}

func (e *encoder) encodeMessage(m *Message) error {
	if err := e.encodeHeader(m.Header, len(m.Question), len(m.Answer), len(m.Authority), len(m.Additional)); err != nil {
		return err
	}
	for _, q := range m.Question {
		if err := e.encodeQuestion(q); err != nil {
			return err
		}
	}
	for _, rr := range m.Answer {
		if err := e.encodeRR(rr); err != nil {
			return err
		}
	}
	for _, rr := range m.Authority {
		if err := e.encodeRR(rr); err != nil {
			return err
		}
	}
	for _, rr := range m.Additional {
		if err := e.encodeRR(rr); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeHeader(h Header, qd, an, ns, ar int) error {
	if err := e.writeU16(h.ID); err != nil {
		return err
	}

	var flags uint16
	if h.QR {
		flags |= 0x8000
	}
	flags |= uint16(h.Opcode&0x0F) << 11
	if h.AA {
		flags |= 0x0400
	}
	if h.TC {
		flags |= 0x0200
	}
	if h.RD {
		flags |= 0x0100
	}
	if h.RA {
		flags |= 0x0080
	}
	flags |= uint16(h.Z&0x01) << 6
	if h.AD {
		flags |= 0x0020
	}
	if h.CD {
		flags |= 0x0010
	}
	flags |= uint16(h.Rcode & 0x0F)

	if err := e.writeU16(flags); err != nil {
		return err
	}
	if err := e.writeU16(uint16(qd)); err != nil {
		return err
	}
	if err := e.writeU16(uint16(an)); err != nil {
		return err
	}
	if err := e.writeU16(uint16(ns)); err != nil {
		return err
	}
	return e.writeU16(uint16(ar))
}

func (e *encoder) encodeQuestion(q Question) error {
	if err := e.encodeName(q.Name); err != nil {
		return err
	}
	if err := e.writeU16(uint16(q.Type)); err != nil {
		return err
	}
	return e.writeU16(uint16(q.Class))
}

func (e *encoder) encodeRR(rr ResourceRecord) error {
	if err := e.encodeName(rr.Name); err != nil {
		return err
	}
	if err := e.writeU16(uint16(rr.Type)); err != nil {
		return err
	}
	if err := e.writeU16(uint16(rr.Class)); err != nil {
		return err
	}
	if err := e.writeU32(rr.TTL); err != nil {
		return err
	}

	lenPos := e.off
	if err := e.writeU16(0); err != nil {
		return err
	}

	rdataStart := e.off
	if err := e.encodeRData(rr.RData); err != nil {
		return err
	}
	rdlength := e.off - rdataStart
	binary.BigEndian.PutUint16(e.buf[lenPos:], uint16(rdlength))

	return nil
}

func (e *encoder) encodeRData(rdata RData) error {
	switch v := rdata.(type) {
	case A:
		ip4 := v.IP.To4()
		if ip4 == nil {
			return fmt.Errorf("packet: A record has non-IPv4 address %s", v.IP)
		}
		return e.writeBytes(ip4)

	case AAAA:
		ip16 := v.IP.To16()
		if ip16 == nil {
			return fmt.Errorf("packet: AAAA record has invalid address %s", v.IP)
		}
		return e.writeBytes(ip16)

	case NS:
		return e.encodeName(v.Name)

	case CNAME:
		return e.encodeName(v.Name)

	case PTR:
		return e.encodeName(v.Name)

	case MX:
		if err := e.writeU16(v.Preference); err != nil {
			return err
		}
		return e.encodeName(v.Exchange)

	case SOA:
		if err := e.encodeName(v.MName); err != nil {
			return err
		}
		if err := e.encodeName(v.RName); err != nil {
			return err
		}
		for _, f := range []uint32{v.Serial, v.Refresh, v.Retry, v.Expire, v.Minimum} {
			if err := e.writeU32(f); err != nil {
				return err
			}
		}
		return nil

	case TXT:
		if len(v.Strings) == 0 {
			return e.writeCharString("")
		}
		for _, s := range v.Strings {
			if err := e.writeCharString(s); err != nil {
				return err
			}
		}
		return nil

	case HINFO:
		if err := e.writeCharString(v.CPU); err != nil {
			return err
		}
		return e.writeCharString(v.OS)

	case MINFO:
		if err := e.encodeName(v.RMailbx); err != nil {
			return err
		}
		return e.encodeName(v.EMailbx)

	case WKS:
		ip4 := v.Address.To4()
		if ip4 == nil {
			return fmt.Errorf("packet: WKS record has non-IPv4 address %s", v.Address)
		}
		if err := e.writeBytes(ip4); err != nil {
			return err
		}
		if err := e.writeByte(v.Protocol); err != nil {
			return err
		}
		return e.writeBytes(v.Bitmap)

	case Unimplemented:
		return e.writeBytes(v.Raw)

	default:
		return fmt.Errorf("packet: unknown rdata type %T", rdata)
	}
}
