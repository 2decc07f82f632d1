package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// NullString - обертка для sql.NullString для правильной обработки JSON.
type NullString struct {
	sql.NullString
}

// NewNullString возвращает валидную строку, если s не пустая.
func NewNullString(s string) NullString {
	if s == "" {
		return NullString{}
	}
	return NullString{sql.NullString{String: s, Valid: true}}
}

// MarshalJSON реализует интерфейс json.Marshaler для NullString.
func (ns NullString) MarshalJSON() ([]byte, error) {
	if !ns.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(ns.String)
}

// UnmarshalJSON реализует интерфейс json.Unmarshaler для NullString.
func (ns *NullString) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s != nil {
		ns.String = *s
		ns.Valid = true
	} else {
		ns.Valid = false
	}
	return nil
}

// NullTime - обертка для sql.NullTime для правильной обработки JSON.
type NullTime struct {
	sql.NullTime
}

// NewNullTime возвращает валидное время.
func NewNullTime(t time.Time) NullTime {
	return NullTime{sql.NullTime{Time: t, Valid: true}}
}

// MarshalJSON реализует интерфейс json.Marshaler для NullTime.
func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(nt.Time)
}

// UnmarshalJSON реализует интерфейс json.Unmarshaler для NullTime.
func (nt *NullTime) UnmarshalJSON(b []byte) error {
	var t *time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	if t != nil {
		nt.Time = *t
		nt.Valid = true
	} else {
		nt.Valid = false
	}
	return nil
}

// NullFloat64 - обертка для sql.NullFloat64 (сумма заказа от платёжного сервиса).
type NullFloat64 struct {
	sql.NullFloat64
}

// MarshalJSON реализует интерфейс json.Marshaler для NullFloat64.
func (nf NullFloat64) MarshalJSON() ([]byte, error) {
	if !nf.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(nf.Float64)
}

// UnmarshalJSON реализует интерфейс json.Unmarshaler для NullFloat64.
func (nf *NullFloat64) UnmarshalJSON(b []byte) error {
	var f *float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if f != nil {
		nf.Float64 = *f
		nf.Valid = true
	} else {
		nf.Valid = false
	}
	return nil
}
