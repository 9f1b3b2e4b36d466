package models

// Download is an artifact fetched from the join backend, ready to be saved.
type Download struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"-"`
}
