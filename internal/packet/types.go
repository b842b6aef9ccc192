package packet

// Type is a DNS resource/query type code (spec §3 "ResourceType").
type Type uint16

const (
	TypeA     Type = 1
	TypeNS    Type = 2
	TypeCNAME Type = 5
	TypeSOA   Type = 6
	TypeWKS   Type = 11
	TypePTR   Type = 12
	TypeHINFO Type = 13
	TypeMINFO Type = 14
	TypeMX    Type = 15
	TypeTXT   Type = 16
	TypeAAAA  Type = 28

	// Query-only types; never appear as a stored RR.
	TypeAXFR  Type = 252
	TypeMAILB Type = 253
	TypeMAILA Type = 254
	TypeANY   Type = 255
)

var typeNames = map[Type]string{
	TypeA:     "A",
	TypeNS:    "NS",
	TypeCNAME: "CNAME",
	TypeSOA:   "SOA",
	TypeWKS:   "WKS",
	TypePTR:   "PTR",
	TypeHINFO: "HINFO",
	TypeMINFO: "MINFO",
	TypeMX:    "MX",
	TypeTXT:   "TXT",
	TypeAAAA:  "AAAA",
	TypeAXFR:  "AXFR",
	TypeMAILB: "MAILB",
	TypeMAILA: "MAILA",
	TypeANY:   "ANY",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "UNIMPLEMENTED"
}

// TypeByName looks up a Type by its mnemonic (case-sensitive, e.g.
// "A", "AAAA", "MX"), the inverse of Type.String.
func TypeByName(name string) (Type, bool) {
	for t, n := range typeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// Implemented reports whether this module's RR catalog (spec §4.2) can
// fully parse rdata for this type.
func (t Type) Implemented() bool {
	switch t {
	case TypeA, TypeNS, TypeCNAME, TypeSOA, TypeWKS, TypePTR, TypeHINFO, TypeMINFO, TypeMX, TypeTXT, TypeAAAA:
		return true
	default:
		return false
	}
}

// Class is a DNS resource/query class code (spec §3 "ResourceClass").
type Class uint16

const (
	ClassIN  Class = 1
	ClassCS  Class = 2
	ClassCH  Class = 3
	ClassHS  Class = 4
	ClassANY Class = 255
)

func (c Class) String() string {
	switch c {
	case ClassIN:
		return "IN"
	case ClassCS:
		return "CS"
	case ClassCH:
		return "CH"
	case ClassHS:
		return "HS"
	case ClassANY:
		return "ANY"
	default:
		return "RESERVED"
	}
}
