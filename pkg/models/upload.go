package models

import "time"

// UploadPurpose categorizes what a reserved storage object is for.
type UploadPurpose string

const (
	UploadPurposePropertyImage UploadPurpose = "property_image"
	UploadPurposeBrochure      UploadPurpose = "brochure"
	UploadPurposeProfile       UploadPurpose = "profile"
	UploadPurposeBanner        UploadPurpose = "banner"
)

func (p UploadPurpose) Valid() bool {
	switch p {
	case UploadPurposePropertyImage, UploadPurposeBrochure, UploadPurposeProfile, UploadPurposeBanner:
		return true
	}
	return false
}

// UploadStatus is the lifecycle state of a reserved storage object. No
// transition skips a state: created -> uploaded -> referenced.
type UploadStatus string

const (
	UploadStatusCreated    UploadStatus = "created"
	UploadStatusUploaded   UploadStatus = "uploaded"
	UploadStatusReferenced UploadStatus = "referenced"
)

// Upload is a reserved storage object. Only its owner may reference it in a
// pending change, and it may be referenced by at most one change.
type Upload struct {
	ID            string        `json:"id" db:"id"`
	StorageKey    string        `json:"storage_key" db:"storage_key"`
	OwnerID       string        `json:"owner_id" db:"owner_id"`
	Purpose       UploadPurpose `json:"purpose" db:"purpose"`
	CorrelationID *string       `json:"correlation_id,omitempty" db:"correlation_id"`
	Status        UploadStatus  `json:"status" db:"status"`
	SizeBytes     int64         `json:"size_bytes" db:"size_bytes"`
	ContentType   string        `json:"content_type" db:"content_type"`
	ChangeID      *string       `json:"change_id,omitempty" db:"change_id"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// UploadTicket is returned when an upload is reserved: the row plus the
// time-limited signed URL the client PUTs the object to.
type UploadTicket struct {
	Upload    Upload    `json:"upload"`
	SignedURL string    `json:"signed_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
