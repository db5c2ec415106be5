package core

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Credential is the pair of tokens that makes up the client's session
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// IsZero reports whether neither token is set
func (c Credential) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Session represents a session issued by the sandbox backend
type Session struct {
	ID            string    // Unique session identifier
	Subject       string    // Username the session belongs to
	IssuedAt      time.Time // When the session was created
	RefreshExpiry time.Time // When the refresh capability expires
	AccessExpiry  time.Time // When the access capability expires
	RefreshID     string    // Unique identifier for the refresh token
}

// Request is a logical call to the backend. Exactly one of JSON, Body or
// Multipart is used as the payload.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header // per-call overrides

	JSON        any
	Body        []byte
	ContentType string
	Multipart   *Multipart
}

// Multipart describes a multipart/form-data payload. The boundary is chosen
// when the body is encoded, so a caller supplied Content-Type is ignored.
type Multipart struct {
	Fields []FormField
	Files  []FormFile
}

// FormField is a plain multipart value
type FormField struct {
	Name  string
	Value string
}

// FormFile is a multipart file part. Data is held in memory so the request
// can be resubmitted after a renewal.
type FormFile struct {
	Field       string
	FileName    string
	ContentType string
	Data        []byte
}

// AddField appends a form value
func (m *Multipart) AddField(name, value string) *Multipart {
	m.Fields = append(m.Fields, FormField{Name: name, Value: value})
	return m
}

// AddFile reads r into a file part
func (m *Multipart) AddFile(field, fileName string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.Files = append(m.Files, FormFile{Field: field, FileName: fileName, Data: data})
	return nil
}

// Response is a successful backend reply
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	RequestID string
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 || v == nil {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}
