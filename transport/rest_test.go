////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Tests that SubmitMessage posts the payload and returns the server's
// authoritative copy raw.
func TestRESTClient_SubmitMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/api/messages", r.URL.Path)

			var in map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			require.Equal(t, "hello", in["content"])

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"M1","content":"hello"}`))
		}))
	defer srv.Close()

	c := NewRESTClient(srv.URL)
	raw, err := c.SubmitMessage(context.Background(),
		map[string]string{"content": "hello"})
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, "M1", out["id"])
}

// Tests that a 422 maps to ErrSubmissionRejected so the caller can surface a
// distinct blocked notice.
func TestRESTClient_SubmitMessageRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
	defer srv.Close()

	c := NewRESTClient(srv.URL)
	_, err := c.SubmitMessage(context.Background(),
		map[string]string{"content": "spam"})
	require.ErrorIs(t, err, ErrSubmissionRejected)
}

// Tests that History unwraps the messages array.
func TestRESTClient_History(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/conversations/g7/messages", r.URL.Path)
			require.Equal(t, "25", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"messages":[{"id":"M1"},{"id":"M2"}]}`))
		}))
	defer srv.Close()

	c := NewRESTClient(srv.URL)
	msgs, err := c.History(context.Background(), "g7", 25, time.Time{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
}

// Tests that UploadMedia sends multipart form data and returns the resolved
// URL.
func TestRESTClient_UploadMedia(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not really video"), 0644))

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			defer f.Close()
			require.Equal(t, "clip.mp4", hdr.Filename)

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"fileUrl":"https://cdn.test/clip.mp4"}`))
		}))
	defer srv.Close()

	c := NewRESTClient(srv.URL)
	url, err := c.UploadMedia(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.test/clip.mp4", url)
}

// Tests that MarkRead posts the batched IDs.
func TestRESTClient_MarkRead(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				MessageIDs []string `json:"messageIds"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			got = in.MessageIDs
			w.WriteHeader(http.StatusNoContent)
		}))
	defer srv.Close()

	c := NewRESTClient(srv.URL)
	require.NoError(t,
		c.MarkRead(context.Background(), "g7", []string{"M1", "M2"}))
	require.Equal(t, []string{"M1", "M2"}, got)
}
