package joinapi

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"strings"

	"github.com/joinhub/console/internal/models"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// form accumulates a multipart/form-data body.
type form struct {
	buf *bytes.Buffer
	w   *multipart.Writer
	err error
}

func newForm() *form {
	buf := &bytes.Buffer{}
	return &form{buf: buf, w: multipart.NewWriter(buf)}
}

func (f *form) field(name, value string) {
	if f.err != nil {
		return
	}
	f.err = f.w.WriteField(name, value)
}

// file copies the bytes behind u into a part named name.
func (f *form) file(name string, u models.UploadedFile) {
	if f.err != nil {
		return
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(name), quoteEscaper.Replace(u.Name)))
	contentType := u.MediaType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := f.w.CreatePart(h)
	if err != nil {
		f.err = err
		return
	}

	src, err := os.Open(u.Path)
	if err != nil {
		f.err = fmt.Errorf("open %s: %w", u.Name, err)
		return
	}
	defer src.Close()

	if _, err := io.Copy(part, src); err != nil {
		f.err = fmt.Errorf("read %s: %w", u.Name, err)
	}
}

// finish closes the writer and returns the body with its content type.
func (f *form) finish() (io.Reader, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	if err := f.w.Close(); err != nil {
		return nil, "", err
	}
	return f.buf, f.w.FormDataContentType(), nil
}
