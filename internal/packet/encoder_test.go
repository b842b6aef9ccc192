package packet

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeHeaderRoundTrip(t *testing.T) {
	m := &Message{
		Header: Header{
			ID:     0x029A,
			Opcode: OpcodeQuery,
			RD:     true,
		},
		Question: []Question{{Name: "www.state.gov.", Type: TypeA, Class: ClassIN}},
	}

	wire, err := EncodeMessage(m)
	require.NoError(t, err)
	require.Equal(t, []byte{0x02, 0x9A, 0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, wire[:12])

	decoded, err := NewDecoder(wire).Decode()
	require.NoError(t, err)
	require.Equal(t, uint16(0x029A), decoded.Header.ID)
	require.True(t, decoded.Header.RD)
	require.Equal(t, "www.state.gov.", decoded.Question[0].Name)
}

func TestEncodeCompressesRepeatedSuffix(t *testing.T) {
	// Scenario 2: encode ["www.cnn.com", "cnn.com"] and check the second
	// name is a two-byte pointer into the first.
	m2 := &Message{
		Header: Header{ID: 1},
		Question: []Question{
			{Name: "www.cnn.com.", Type: TypeA, Class: ClassIN},
			{Name: "cnn.com.", Type: TypeA, Class: ClassIN},
		},
	}

	wire, err := EncodeMessage(m2)
	require.NoError(t, err)

	// First question name starts at offset 12: 3www3cnn3com0 = 13 bytes.
	// "cnn" label begins 4 bytes into that (length byte + "www").
	cnnOffset := 12 + 4
	secondNameStart := 12 + 13 + 4 // past first question's name+type+class
	require.Equal(t, byte(0xC0|(cnnOffset>>8)), wire[secondNameStart])
	require.Equal(t, byte(cnnOffset&0xFF), wire[secondNameStart+1])

	decoded, err := NewDecoder(wire).Decode()
	require.NoError(t, err)
	require.Equal(t, "cnn.com.", decoded.Question[1].Name)
}

func TestEncodeDecodeRoundTripAllTypes(t *testing.T) {
	m := &Message{
		Header:   Header{ID: 7, QR: true, RD: true, RA: true},
		Question: []Question{{Name: "example.com.", Type: TypeANY, Class: ClassIN}},
		Answer: []ResourceRecord{
			{Name: "example.com.", Type: TypeA, Class: ClassIN, TTL: 60, RData: A{IP: net.IPv4(93, 184, 216, 34)}},
			{Name: "example.com.", Type: TypeAAAA, Class: ClassIN, TTL: 60, RData: AAAA{IP: net.ParseIP("2606:2800:220:1:248:1893:25c8:1946")}},
			{Name: "example.com.", Type: TypeNS, Class: ClassIN, TTL: 3600, RData: NS{Name: "a.iana-servers.net."}},
			{Name: "example.com.", Type: TypeCNAME, Class: ClassIN, TTL: 3600, RData: CNAME{Name: "canonical.example.com."}},
			{Name: "example.com.", Type: TypeMX, Class: ClassIN, TTL: 3600, RData: MX{Preference: 10, Exchange: "mail.example.com."}},
			{Name: "example.com.", Type: TypeSOA, Class: ClassIN, TTL: 3600, RData: SOA{
				MName: "ns.example.com.", RName: "hostmaster.example.com.",
				Serial: 2024010100, Refresh: 7200, Retry: 3600, Expire: 1209600, Minimum: 3600,
			}},
			{Name: "example.com.", Type: TypeTXT, Class: ClassIN, TTL: 300, RData: TXT{Strings: []string{"v=spf1", "-all"}}},
			{Name: "example.com.", Type: TypeHINFO, Class: ClassIN, TTL: 300, RData: HINFO{CPU: "ARM", OS: "Linux"}},
			{Name: "example.com.", Type: TypeMINFO, Class: ClassIN, TTL: 300, RData: MINFO{RMailbx: "admin.example.com.", EMailbx: "errors.example.com."}},
			{Name: "example.com.", Type: TypePTR, Class: ClassIN, TTL: 300, RData: PTR{Name: "host.example.com."}},
			{Name: "example.com.", Type: TypeWKS, Class: ClassIN, TTL: 300, RData: WKS{Address: net.IPv4(10, 0, 0, 1), Protocol: 6, Bitmap: []byte{0x01, 0x02}}},
		},
	}

	wire, err := EncodeMessage(m)
	require.NoError(t, err)

	decoded, err := NewDecoder(wire).Decode()
	require.NoError(t, err)
	require.Len(t, decoded.Answer, len(m.Answer))

	for i, want := range m.Answer {
		got := decoded.Answer[i]
		require.Truef(t, Same(want, got), "record %d: want %+v got %+v", i, want.RData, got.RData)
	}
}

func TestEncodeRejectsOversizedName(t *testing.T) {
	longLabel := make([]byte, 64)
	for i := range longLabel {
		longLabel[i] = 'a'
	}
	m := &Message{
		Header:   Header{ID: 1},
		Question: []Question{{Name: string(longLabel) + ".com.", Type: TypeA, Class: ClassIN}},
	}
	_, err := EncodeMessage(m)
	require.ErrorIs(t, err, ErrLabelTooLong)
}

func TestEncodeBufferLadderRetriesOnOverflow(t *testing.T) {
	// A TXT record whose payload alone exceeds 512 bytes must push the
	// encoder to the next buffer size rather than fail outright.
	big := make([]byte, 400)
	for i := range big {
		big[i] = 'x'
	}
	m := &Message{
		Header:   Header{ID: 1, QR: true},
		Question: []Question{{Name: "big.example.com.", Type: TypeTXT, Class: ClassIN}},
		Answer: []ResourceRecord{
			{Name: "big.example.com.", Type: TypeTXT, Class: ClassIN, TTL: 60, RData: TXT{Strings: []string{string(big), string(big)}}},
		},
	}

	wire, err := EncodeMessage(m)
	require.NoError(t, err)
	require.Greater(t, len(wire), 512)
}
