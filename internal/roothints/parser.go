// Package roothints loads the root name-server bootstrap list used to
// seed iterative resolution (spec.md §4.4): fetch or read the ASCII
// hints text, parse its anchor date and NS/A/AAAA record lines, and
// hand back resource records ready for the query engine's initial
// candidate set.
package roothints

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dnsscience/resolvcore/internal/packet"
)

var anchorLineRE = regexp.MustCompile(`(?i)last update:\s*([A-Za-z]+)\s+(\d{1,2}),\s*(\d{4})`)

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// Hints is the parsed result of one root-hints document.
type Hints struct {
	// Anchor is the authoritative "last update" date embedded in the file.
	Anchor time.Time

	// Records are the decoded NS/A/AAAA resource records, with TTL the
	// number of seconds declared on each record line.
	Records []packet.ResourceRecord
}

// Parse reads an ASCII root-hints document from r (spec.md §4.4, §6
// "Root-hints file format"). It does not evaluate expiration; callers
// combine Hints.Anchor with each record's TTL as needed (see checkAge
// in hints.go).
func Parse(r io.Reader) (*Hints, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	h := &Hints{}
	var anchorFound bool

	for scanner.Scan() {
		line := scanner.Text()

		if m := anchorLineRE.FindStringSubmatch(line); m != nil {
			month, ok := monthNames[strings.ToLower(m[1])]
			if !ok {
				continue
			}
			day, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			year, err := strconv.Atoi(m[3])
			if err != nil {
				continue
			}
			h.Anchor = time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			anchorFound = true
			continue
		}

		rec, ok, err := parseRecordLine(line)
		if err != nil {
			return nil, fmt.Errorf("roothints: %w", err)
		}
		if ok {
			h.Records = append(h.Records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("roothints: scan: %w", err)
	}
	if !anchorFound {
		return nil, ErrNoAnchorDate
	}
	if len(h.Records) == 0 {
		return nil, ErrNoRecords
	}
	return h, nil
}

// parseRecordLine decodes one "<name> <ttl-seconds> <type> <rdata>"
// line, returning ok=false for blank lines, pure comments, and any
// line whose type is not in {A, AAAA, NS}.
func parseRecordLine(line string) (packet.ResourceRecord, bool, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, ";") || strings.HasPrefix(trimmed, "#") {
		return packet.ResourceRecord{}, false, nil
	}

	fields := strings.Fields(trimmed)
	if len(fields) < 4 {
		return packet.ResourceRecord{}, false, nil
	}

	name, ttlField, typeField, rdataField := fields[0], fields[1], fields[2], fields[3]

	ttl, err := strconv.ParseUint(ttlField, 10, 32)
	if err != nil {
		return packet.ResourceRecord{}, false, fmt.Errorf("invalid ttl %q on line %q: %w", ttlField, trimmed, err)
	}

	if err := packet.ValidateName(name); err != nil {
		return packet.ResourceRecord{}, false, fmt.Errorf("invalid name %q: %w", name, err)
	}

	rr := packet.ResourceRecord{
		Name:  packet.NormalizeName(name),
		Class: packet.ClassIN,
		TTL:   uint32(ttl),
	}

	switch strings.ToUpper(typeField) {
	case "A":
		ip := net.ParseIP(rdataField).To4()
		if ip == nil {
			return packet.ResourceRecord{}, false, fmt.Errorf("invalid A address %q on line %q", rdataField, trimmed)
		}
		rr.Type = packet.TypeA
		rr.RData = packet.A{IP: ip}

	case "AAAA":
		ip := net.ParseIP(rdataField).To16()
		if ip == nil {
			return packet.ResourceRecord{}, false, fmt.Errorf("invalid AAAA address %q on line %q", rdataField, trimmed)
		}
		rr.Type = packet.TypeAAAA
		rr.RData = packet.AAAA{IP: ip}

	case "NS":
		if err := packet.ValidateName(rdataField); err != nil {
			return packet.ResourceRecord{}, false, fmt.Errorf("invalid NS target %q: %w", rdataField, err)
		}
		rr.Type = packet.TypeNS
		rr.RData = packet.NS{Name: packet.NormalizeName(rdataField)}

	default:
		// Not one of the three record types this format carries; skip.
		return packet.ResourceRecord{}, false, nil
	}

	return rr, true, nil
}
