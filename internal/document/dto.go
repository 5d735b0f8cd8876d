package document

// UploadDTO carries the metadata of an uploaded file; content travels
// separately as a stream.
type UploadDTO struct {
	FileName    string
	ContentType string
}

type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

func (d UploadDTO) Validate() error {
	if d.FileName == "" {
		return ValidationError{Msg: "file name is required"}
	}
	if d.ContentType == "" {
		return ValidationError{Msg: "content type is required"}
	}
	return nil
}

// DocumentView is the listing/detail shape.
type DocumentView struct {
	ID             string `json:"id"`
	OwnerID        int64  `json:"owner_id"`
	Name           string `json:"name"`
	CurrentVersion int    `json:"current_version"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}
