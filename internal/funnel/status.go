package funnel

import (
	"database/sql/driver"
	"fmt"
)

// Status is the position of a user in the funnel.
type Status uint8

const (
	// StatusUnknown is the zero value and never persisted.
	StatusUnknown Status = iota
	// StatusFileSent means the document was delivered and the offer is pending.
	StatusFileSent
	// StatusOfferSent means the consultation offer was delivered.
	StatusOfferSent
	// StatusContactProvided is terminal: the user converted.
	StatusContactProvided
	// StatusExhausted means both warm-ups went out without conversion.
	StatusExhausted
)

var statusNames = map[Status]string{
	StatusFileSent:        "file_sent",
	StatusOfferSent:       "offer_sent",
	StatusContactProvided: "contact_provided",
	StatusExhausted:       "exhausted",
}

// Statuses lists every storable status in funnel order.
func Statuses() []Status {
	return []Status{StatusFileSent, StatusOfferSent, StatusContactProvided, StatusExhausted}
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether s is one of the storable statuses.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// ParseStatus converts the persisted name back to a Status.
func ParseStatus(name string) (Status, error) {
	for st, n := range statusNames {
		if n == name {
			return st, nil
		}
	}
	return StatusUnknown, fmt.Errorf("funnel: unknown status %q", name)
}

// Value implements driver.Valuer.
func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("funnel: cannot store status %d", uint8(s))
	}
	return s.String(), nil
}

// Scan implements sql.Scanner.
func (s *Status) Scan(src any) error {
	var name string
	switch v := src.(type) {
	case string:
		name = v
	case []byte:
		name = string(v)
	case nil:
		return fmt.Errorf("funnel: null status")
	default:
		return fmt.Errorf("funnel: unsupported status type %T", src)
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
