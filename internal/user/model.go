package user

type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"`
	ImageURL string `json:"image_url,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ID          int    `json:"id"`
	Username    string `json:"username"`
}

type UpdateImageRequest struct {
	ImageURL string `json:"image_url"`
}

// HiddenWordsPayload carries the viewer's full redaction list; PUT
// replaces the list wholesale.
type HiddenWordsPayload struct {
	Words []string `json:"words"`
}
