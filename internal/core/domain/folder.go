package domain

import (
	"strings"
	"unicode"
)

// EntityIDWidth is the zero-padded width of normalised entity identifiers.
const EntityIDWidth = 4

// Folder is one collection folder. Each folder represents a single logical
// entity; its name carries the entity id and an optional label.
type Folder struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

// Signature detects content change without comparing bytes.
type Signature struct {
	Checksum     string `json:"checksum"`
	ModifiedTime string `json:"modified"`
}

// Equal reports whether both parts of the signature match.
func (s Signature) Equal(other Signature) bool {
	return s.Checksum == other.Checksum && s.ModifiedTime == other.ModifiedTime
}

// Object is one binary file inside a collection folder.
// It is observed, never mutated, by this system.
type Object struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MIMEType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	Signature Signature `json:"signature"`
	ParentID  string    `json:"parent_id"`
}

// SeenRecord maps object id to the last signature successfully embedded and
// indexed for one folder.
type SeenRecord map[string]Signature

// IsChanged reports whether obj must be re-embedded: its signature is absent
// from the record or differs from it.
func (r SeenRecord) IsChanged(obj Object) bool {
	prev, ok := r[obj.ID]
	return !ok || !prev.Equal(obj.Signature)
}

// NormalizeEntityID returns the canonical form of a raw entity identifier.
// Identifiers are decimal item numbers; they are left-padded with zeros to
// EntityIDWidth so "7", "007" and "0007" all group together.
func NormalizeEntityID(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	if len(s) < EntityIDWidth {
		s = strings.Repeat("0", EntityIDWidth-len(s)) + s
	}
	return s, true
}

// ParseFolderName splits a folder name such as "0007 - Oak Chair" into its
// entity id and label. ok is false for folders without a leading item number.
func ParseFolderName(name string) (entityID, label string, ok bool) {
	name = strings.TrimSpace(name)
	end := 0
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}
	entityID, ok = NormalizeEntityID(name[:end])
	if !ok {
		return "", "", false
	}
	rest := name[end:]
	// The id must be a whole token: "12abc" is not item 12.
	if rest != "" && !isLabelSeparator(rune(rest[0])) {
		return "", "", false
	}
	label = strings.TrimLeftFunc(rest, isLabelSeparator)
	return entityID, strings.TrimSpace(label), true
}

func isLabelSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '-' || r == '_' || r == '.' || r == ':'
}
