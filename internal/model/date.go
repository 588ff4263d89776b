package model

import (
    "database/sql/driver"
    "fmt"
    "strings"
    "time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day.  It serialises to JSON as
// "YYYY-MM-DD" and round-trips through MySQL DATE columns.
type Date struct {
    time.Time
}

// NewDate truncates t to midnight UTC.
func NewDate(t time.Time) Date {
    y, m, d := t.UTC().Date()
    return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
    t, err := time.Parse(DateLayout, strings.TrimSpace(s))
    if err != nil {
        return Date{}, err
    }
    return Date{Time: t}, nil
}

func (d Date) String() string {
    if d.IsZero() {
        return ""
    }
    return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
    if d.IsZero() {
        return []byte("null"), nil
    }
    return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
    s := strings.Trim(string(b), `"`)
    if s == "" || s == "null" {
        d.Time = time.Time{}
        return nil
    }
    parsed, err := ParseDate(s)
    if err != nil {
        return fmt.Errorf("date must be formatted as YYYY-MM-DD: %w", err)
    }
    *d = parsed
    return nil
}

// Scan implements sql.Scanner.  The driver returns time.Time when the DSN
// carries parseTime=true and raw bytes otherwise.
func (d *Date) Scan(src any) error {
    switch v := src.(type) {
    case nil:
        d.Time = time.Time{}
        return nil
    case time.Time:
        *d = NewDate(v)
        return nil
    case []byte:
        return d.scanString(string(v))
    case string:
        return d.scanString(v)
    }
    return fmt.Errorf("cannot scan %T into model.Date", src)
}

func (d *Date) scanString(s string) error {
    if len(s) > len(DateLayout) {
        s = s[:len(DateLayout)]
    }
    parsed, err := ParseDate(s)
    if err != nil {
        return err
    }
    *d = parsed
    return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
    if d.IsZero() {
        return nil, nil
    }
    return d.Format(DateLayout), nil
}
