package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/layer-3/apiclient/core"
)

const RequestIDHeader = "X-Request-ID"

var errNilRequest = errors.New("nil request")

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// attempt is one logical request on its way through the dispatcher
type attempt struct {
	req       *core.Request
	requestID string
	retried   bool
	anonymous bool // never carries Authorization
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeUnauthorized
	outcomeFailure
)

// Do sends req with the current access credential. A 401 triggers one
// renewal and one resubmission; any other failure is returned as *core.Error.
func (c *Client) Do(ctx context.Context, req *core.Request) (*core.Response, error) {
	if req == nil {
		return nil, core.Normalize(errNilRequest)
	}
	at := &attempt{req: req, requestID: requestID(req)}

	token := c.accessToken(ctx)
	resp, err := c.roundTrip(ctx, at, token)

	switch classify(at, resp, err) {
	case outcomeSuccess:
		return resp, nil
	case outcomeUnauthorized:
		at.retried = true
		c.logger.Debug().Str("request_id", at.requestID).Str("path", req.Path).Msg("authorization failed, renewing")

		fresh, rerr := c.coordinator.Renew(ctx, token)
		if rerr != nil {
			return nil, c.failure(at, nil, rerr)
		}
		resp, err = c.roundTrip(ctx, at, fresh)
		if classify(at, resp, err) == outcomeSuccess {
			return resp, nil
		}
	}
	return nil, c.failure(at, resp, err)
}

func classify(at *attempt, resp *core.Response, err error) outcome {
	switch {
	case err != nil:
		return outcomeFailure
	case resp.Status >= 200 && resp.Status < 300:
		return outcomeSuccess
	case resp.Status == http.StatusUnauthorized && !at.retried:
		return outcomeUnauthorized
	default:
		return outcomeFailure
	}
}

func (c *Client) failure(at *attempt, resp *core.Response, err error) error {
	if err == nil && resp != nil {
		err = &core.StatusError{Status: resp.Status, Header: resp.Header, Body: resp.Body}
	}
	normalized := core.Normalize(err)

	c.logger.Debug().
		Str("request_id", at.requestID).
		Str("method", at.req.Method).
		Str("path", at.req.Path).
		Int("status", normalized.Status).
		Str("error", normalized.Message).
		Msg("request failed")
	return normalized
}

func (c *Client) accessToken(ctx context.Context) string {
	credential, ok := c.store.Get(ctx)
	if !ok {
		return ""
	}
	return credential.AccessToken
}

// roundTrip performs a single HTTP exchange. Non-2xx statuses are returned
// as responses, only transport failures are errors.
func (c *Client) roundTrip(ctx context.Context, at *attempt, token string) (*core.Response, error) {
	httpReq, err := c.newHTTPRequest(ctx, at, token)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Debug().
		Str("request_id", at.requestID).
		Str("method", httpReq.Method).
		Str("path", at.req.Path).
		Int("status", httpResp.StatusCode).
		Bool("retried", at.retried).
		Msg("request")

	return &core.Response{
		Status:    httpResp.StatusCode,
		Header:    httpResp.Header,
		Body:      body,
		RequestID: at.requestID,
	}, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, at *attempt, token string) (*http.Request, error) {
	req := at.req
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for key, values := range c.headers {
		httpReq.Header[key] = append([]string(nil), values...)
	}
	for key, values := range req.Header {
		httpReq.Header[textproto.CanonicalMIMEHeaderKey(key)] = append([]string(nil), values...)
	}

	switch {
	case req.Multipart != nil:
		// the encoder owns the boundary
		httpReq.Header.Set("Content-Type", contentType)
	case contentType != "" && httpReq.Header.Get("Content-Type") == "":
		httpReq.Header.Set("Content-Type", contentType)
	}

	httpReq.Header.Set(RequestIDHeader, at.requestID)

	switch {
	case at.anonymous:
		httpReq.Header.Del("Authorization")
	case token != "":
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		target = c.baseURL + path
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse request url: %w", err)
	}
	if len(query) > 0 {
		merged := u.Query()
		for key, values := range query {
			for _, v := range values {
				merged.Add(key, v)
			}
		}
		u.RawQuery = merged.Encode()
	}
	return u.String(), nil
}

// encodeBody is called once per attempt so a resubmission gets a fresh reader
func encodeBody(req *core.Request) (io.Reader, string, error) {
	switch {
	case req.Multipart != nil:
		return encodeMultipart(req.Multipart)
	case req.JSON != nil:
		payload, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("encoding request body: %w", err)
		}
		return bytes.NewReader(payload), "application/json", nil
	case req.Body != nil:
		return bytes.NewReader(req.Body), req.ContentType, nil
	default:
		return nil, "", nil
	}
}

func encodeMultipart(form *core.Multipart) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, field := range form.Fields {
		if err := w.WriteField(field.Name, field.Value); err != nil {
			return nil, "", fmt.Errorf("encoding form field %s: %w", field.Name, err)
		}
	}
	for _, file := range form.Files {
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(file.Field), quoteEscaper.Replace(file.FileName)))
		header.Set("Content-Type", contentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("encoding form file %s: %w", file.Field, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", fmt.Errorf("encoding form file %s: %w", file.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encoding form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func requestID(req *core.Request) string {
	if id := req.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	return newRequestID()
}

func newRequestID() string {
	return uuid.NewString()
}
