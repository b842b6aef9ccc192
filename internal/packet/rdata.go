package packet

import (
	"bytes"
	"net"
)

// RData is the closed tagged union of resource-record payloads (spec
// §4.2, §9 "Polymorphism over record types"). Each implemented type has
// one concrete arm; everything else decodes to an Unimplemented value, which
// keeps the raw bytes for round-trip fidelity but is never admitted to
// the cache (spec §4.3 insert rule 2).
type RData interface {
	// Type returns the resource type this rdata encodes as.
	Type() Type
	// Equal reports bit-for-bit sameness with another rdata value of
	// the same type (spec §4.2 "Sameness").
	Equal(RData) bool
}

// A is an IPv4 address record.
type A struct{ IP net.IP }

func (A) Type() Type { return TypeA }
func (a A) Equal(o RData) bool {
	b, ok := o.(A)
	return ok && a.IP.Equal(b.IP)
}

// AAAA is an IPv6 address record.
type AAAA struct{ IP net.IP }

func (AAAA) Type() Type { return TypeAAAA }
func (a AAAA) Equal(o RData) bool {
	b, ok := o.(AAAA)
	return ok && a.IP.Equal(b.IP)
}

// NS names an authoritative name server.
type NS struct{ Name string }

func (NS) Type() Type { return TypeNS }
func (a NS) Equal(o RData) bool {
	b, ok := o.(NS)
	return ok && NormalizeName(a.Name) == NormalizeName(b.Name)
}

// CNAME is a canonical-name alias.
type CNAME struct{ Name string }

func (CNAME) Type() Type { return TypeCNAME }
func (a CNAME) Equal(o RData) bool {
	b, ok := o.(CNAME)
	return ok && NormalizeName(a.Name) == NormalizeName(b.Name)
}

// PTR is a domain-name pointer, typically used for reverse lookups.
type PTR struct{ Name string }

func (PTR) Type() Type { return TypePTR }
func (a PTR) Equal(o RData) bool {
	b, ok := o.(PTR)
	return ok && NormalizeName(a.Name) == NormalizeName(b.Name)
}

// MX is a mail-exchange record.
type MX struct {
	Preference uint16
	Exchange   string
}

func (MX) Type() Type { return TypeMX }
func (a MX) Equal(o RData) bool {
	b, ok := o.(MX)
	return ok && a.Preference == b.Preference && NormalizeName(a.Exchange) == NormalizeName(b.Exchange)
}

// SOA is the start-of-authority record.
type SOA struct {
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

func (SOA) Type() Type { return TypeSOA }
func (a SOA) Equal(o RData) bool {
	b, ok := o.(SOA)
	return ok && NormalizeName(a.MName) == NormalizeName(b.MName) &&
		NormalizeName(a.RName) == NormalizeName(b.RName) &&
		a.Serial == b.Serial && a.Refresh == b.Refresh &&
		a.Retry == b.Retry && a.Expire == b.Expire && a.Minimum == b.Minimum
}

// TXT is one or more concatenated character-strings.
type TXT struct{ Strings []string }

func (TXT) Type() Type { return TypeTXT }
func (a TXT) Equal(o RData) bool {
	b, ok := o.(TXT)
	if !ok || len(a.Strings) != len(b.Strings) {
		return false
	}
	for i := range a.Strings {
		if a.Strings[i] != b.Strings[i] {
			return false
		}
	}
	return true
}

// HINFO describes host CPU and OS.
type HINFO struct {
	CPU string
	OS  string
}

func (HINFO) Type() Type { return TypeHINFO }
func (a HINFO) Equal(o RData) bool {
	b, ok := o.(HINFO)
	return ok && a.CPU == b.CPU && a.OS == b.OS
}

// MINFO names a mailbox responsible for a mailing list/mailbox.
type MINFO struct {
	RMailbx string
	EMailbx string
}

func (MINFO) Type() Type { return TypeMINFO }
func (a MINFO) Equal(o RData) bool {
	b, ok := o.(MINFO)
	return ok && NormalizeName(a.RMailbx) == NormalizeName(b.RMailbx) &&
		NormalizeName(a.EMailbx) == NormalizeName(b.EMailbx)
}

// WKS describes well-known services on a host.
type WKS struct {
	Address  net.IP
	Protocol uint8
	Bitmap   []byte
}

func (WKS) Type() Type { return TypeWKS }
func (a WKS) Equal(o RData) bool {
	b, ok := o.(WKS)
	return ok && a.Address.Equal(b.Address) && a.Protocol == b.Protocol && bytes.Equal(a.Bitmap, b.Bitmap)
}

// Unimplemented preserves the raw rdata bytes of any type outside the
// catalog, keyed by its wire type code, so messages round-trip without
// this module needing to understand every registered RR type.
type Unimplemented struct {
	TypeCode Type
	Raw      []byte
}

func (u Unimplemented) Type() Type { return u.TypeCode }
func (a Unimplemented) Equal(o RData) bool {
	b, ok := o.(Unimplemented)
	return ok && a.TypeCode == b.TypeCode && bytes.Equal(a.Raw, b.Raw)
}

// Same reports whether two records share the same (domain-lower, class,
// type, rdata) triple (spec §4.2 "Sameness", used by the cache's
// duplicate-merge rule).
func Same(a, b ResourceRecord) bool {
	return NormalizeName(a.Name) == NormalizeName(b.Name) &&
		a.Class == b.Class && a.Type == b.Type && a.RData.Equal(b.RData)
}
