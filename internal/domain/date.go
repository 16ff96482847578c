package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day without a time component. A batch belongs to exactly
// one production day, so identity comparisons must ignore clock time and zone.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	year, month, day := t.Date()
	return NewDate(year, month, day)
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: date must be formatted as YYYY-MM-DD", ErrValidation)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }

func (d Date) String() string { return d.t.Format(dateLayout) }

func (d Date) Time() time.Time { return d.t }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: date must be a YYYY-MM-DD string", ErrValidation)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer so Date is stored in a DATE column.
func (d Date) Value() (driver.Value, error) {
	return d.t, nil
}

// Scan implements sql.Scanner. Drivers hand back either time.Time or the raw
// column text depending on the dialect.
func (d *Date) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", value)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("cannot scan %q into Date", s)
	}
	*d = DateOf(parsed)
	return nil
}

// GormDataType tells the migrator which column type to use.
func (Date) GormDataType() string { return "date" }
