package utils

import (
	"database/sql"
	"time"

	"github.com/aarondl/null/v8"
)

const DateTimeLayout = "2006-01-02 15:04:05"

func FormatTime(t time.Time) string {
	return t.Local().Format(DateTimeLayout)
}

// NullTimeToNullString отдаёт null.String, чтобы в JSON было null, а не пустая строка.
func NullTimeToNullString(nt sql.NullTime) null.String {
	if !nt.Valid {
		return null.String{}
	}
	return null.StringFrom(FormatTime(nt.Time))
}

func NullTimeToDate(nt sql.NullTime) null.String {
	if !nt.Valid {
		return null.String{}
	}
	return null.StringFrom(nt.Time.Format("2006-01-02"))
}
