////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Error messages.
const (
	restRequestErr = "%s %s failed: %+v"
	restStatusErr  = "%s %s returned status %d: %s"
	restDecodeErr  = "failed to decode %s response: %+v"
)

// ErrSubmissionRejected is returned by SubmitMessage when the server
// declines the content for policy reasons. Callers surface it as a distinct
// blocked notice and roll back the optimistic entry.
var ErrSubmissionRejected = errors.New("submission rejected by server")

const restTimeout = 15 * time.Second

// RESTClient is the request/response fallback used while the event channel
// is down. Its request and response bodies mirror the event payloads, so the
// chat package can feed REST results through the same reconciliation path as
// broadcasts.
type RESTClient struct {
	baseURL string
	http    *http.Client
}

// NewRESTClient returns a client for the server's HTTP API.
func NewRESTClient(baseURL string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: restTimeout},
	}
}

// SubmitMessage posts one message submission. The payload has the same shape
// as a SendMessage event; the response body is the authoritative message
// copy the channel would have broadcast, returned raw so the caller can
// apply it through reconciliation. A 422 from the policy filter maps to
// ErrSubmissionRejected.
func (c *RESTClient) SubmitMessage(ctx context.Context, payload any) (
	json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal submission")
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/messages",
		"application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, ErrSubmissionRejected
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, statusError(http.MethodPost, "/api/messages", resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Errorf(restDecodeErr, "/api/messages", err)
	}

	return raw, nil
}

// History lists up to limit messages for the conversation, newest first,
// older than before when it is nonzero. Each element is an authoritative
// message payload identical in shape to a NewMessage event.
func (c *RESTClient) History(ctx context.Context, conversation string,
	limit int, before time.Time) ([]json.RawMessage, error) {
	path := fmt.Sprintf("/api/conversations/%s/messages?limit=%d",
		conversation, limit)
	if !before.IsZero() {
		path += fmt.Sprintf("&before=%d", before.UnixMilli())
	}

	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(http.MethodGet, path, resp)
	}

	var out struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Errorf(restDecodeErr, path, err)
	}

	return out.Messages, nil
}

// UploadMedia uploads the file at the given path as multipart form data and
// returns the resolved URL the server will serve it from. Used when an
// attachment has to move over REST because the event channel is down.
func (c *RESTClient) UploadMedia(ctx context.Context, localPath string) (
	string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %s for upload", localPath)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return "", errors.Wrap(err, "failed to build multipart body")
	}
	if _, err = io.Copy(part, f); err != nil {
		return "", errors.Wrapf(err, "failed to read %s for upload", localPath)
	}
	if err = w.Close(); err != nil {
		return "", errors.Wrap(err, "failed to finish multipart body")
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/media",
		w.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", statusError(http.MethodPost, "/api/media", resp)
	}

	var out struct {
		FileURL string `json:"fileUrl"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Errorf(restDecodeErr, "/api/media", err)
	}

	jww.INFO.Printf("[REST] Uploaded %s, resolved to %s", localPath, out.FileURL)
	return out.FileURL, nil
}

// MarkRead issues one batched mark-read request for the given message IDs.
func (c *RESTClient) MarkRead(ctx context.Context, conversation string,
	ids []string) error {
	body, err := json.Marshal(struct {
		MessageIDs []string `json:"messageIds"`
	}{ids})
	if err != nil {
		return errors.Wrap(err, "failed to marshal mark-read body")
	}

	path := fmt.Sprintf("/api/conversations/%s/read", conversation)
	resp, err := c.do(ctx, http.MethodPost, path, "application/json",
		bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError(http.MethodPost, path, resp)
	}

	return nil
}

func (c *RESTClient) do(ctx context.Context, method, path, contentType string,
	body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Errorf(restRequestErr, method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Errorf(restRequestErr, method, path, err)
	}

	return resp, nil
}

func statusError(method, path string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return errors.Errorf(restStatusErr, method, path, resp.StatusCode,
		string(snippet))
}
