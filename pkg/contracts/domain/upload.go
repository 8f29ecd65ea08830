package domain

import "time"

// UploadKind is the file type of a stored upload
type UploadKind string

const (
	UploadCSV  UploadKind = "csv"
	UploadXLSX UploadKind = "xlsx"
)

// Upload describes a user file kept in the uploads directory
type Upload struct {
	ID       string     `json:"id"`
	Kind     UploadKind `json:"kind"`
	Filename string     `json:"filename"`
	Size     int64      `json:"size"`
	StoredAt time.Time  `json:"stored_at"`
}
