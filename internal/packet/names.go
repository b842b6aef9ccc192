package packet

import (
	"fmt"
	"strings"
)

// ValidateLabel enforces spec §3's Label grammar for names this module
// *constructs* (outbound questions, root-hints records): ASCII length
// [1,63], letters/digits/hyphen only, hyphen never first or last.
// Decoded wire names from upstream servers are not held to this rule —
// only to the length bounds enforced in decoder.go — since real-world
// responses routinely carry labels (underscores, wildcards-as-literals)
// that violate the strict grammar without being malicious.
func ValidateLabel(label string) error {
	if len(label) == 0 {
		return fmt.Errorf("%w: empty label", ErrBadLabel)
	}
	if len(label) > MaxLabelLength {
		return fmt.Errorf("%w: %d bytes", ErrLabelTooLong, len(label))
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return fmt.Errorf("%w: hyphen at edge of %q", ErrBadLabel, label)
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return fmt.Errorf("%w: invalid byte %q in %q", ErrBadLabel, c, label)
		}
	}
	return nil
}

// SplitLabels splits a textual domain name ("www.example.com" or
// "www.example.com.") into its ordered labels, dropping a trailing
// empty root label.
func SplitLabels(name string) []string {
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return nil
	}
	return strings.Split(name, ".")
}

// ValidateName validates every label of a constructed domain name and
// its total wire length (labels + length bytes + terminating zero),
// per spec §3's DomainName invariant.
func ValidateName(name string) error {
	labels := SplitLabels(name)
	wireLen := 1 // terminating zero byte
	for _, l := range labels {
		if err := ValidateLabel(l); err != nil {
			return err
		}
		wireLen += len(l) + 1
	}
	if wireLen > MaxDomainLength {
		return fmt.Errorf("%w: %d bytes", ErrNameTooLong, wireLen)
	}
	return nil
}

// JoinLabels reassembles labels into canonical dotted text form,
// terminated by the root label as spec §3 requires.
func JoinLabels(labels []string) string {
	if len(labels) == 0 {
		return "."
	}
	return strings.Join(labels, ".") + "."
}
