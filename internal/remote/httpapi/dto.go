package httpapi

// TitleDTO is a catalog record on the wire
type TitleDTO struct {
	ID            uint64  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	TitleType     string  `json:"titleType"`
	VideoURL      string  `json:"videoUrl"`
	CoverImageURL string  `json:"coverImageUrl"`
	AverageRating float64 `json:"averageRating"`
	RatingCount   uint64  `json:"ratingCount"`
}

// TitleInputDTO is the body of addTitle/updateTitle
type TitleInputDTO struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	TitleType     string `json:"titleType"`
	VideoURL      string `json:"videoUrl"`
	CoverImageURL string `json:"coverImageUrl"`
}

// IDResponse is returned by addTitle
type IDResponse struct {
	ID uint64 `json:"id"`
}

// RatingDTO is a rating aggregate
type RatingDTO struct {
	AverageRating float64 `json:"averageRating"`
	RatingCount   uint64  `json:"ratingCount"`
}

// RateRequest submits one rating
type RateRequest struct {
	Rating int `json:"rating"`
}

// ProfileDTO is the caller's profile
type ProfileDTO struct {
	Name string `json:"name"`
}

// RoleResponse is returned by getMyRole
type RoleResponse struct {
	Role string `json:"role"`
}

// BeginUploadRequest opens an upload session
type BeginUploadRequest struct {
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
}

// BeginUploadResponse carries the session id
type BeginUploadResponse struct {
	UploadID string `json:"uploadId"`
}

// CompleteUploadResponse carries the stored asset URL
type CompleteUploadResponse struct {
	URL string `json:"url"`
}

// ErrorResponse is the body of a rejected request
type ErrorResponse struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}
