package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWhisperServer(t *testing.T, status int, body string) (*httptest.Server, *[]string) {
	t.Helper()
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path)
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file: %v", err)
		} else {
			data, _ := io.ReadAll(f)
			if len(data) < 44 || string(data[:4]) != "RIFF" {
				t.Errorf("uploaded file is not a wav container")
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestWhisperRecognize(t *testing.T) {
	srv, seen := newWhisperServer(t, http.StatusOK, `{"text":" Tell me a joke. "}`)
	w, err := NewWhisper(WithAPIKey("test"), WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	text, err := w.Recognize(context.Background(), Audio{Path: savedClip(t)})
	require.NoError(t, err)
	assert.Equal(t, "Tell me a joke.", text)
	assert.Equal(t, []string{"/v1/audio/transcriptions"}, *seen)
}

func TestWhisperEmptyTranscript(t *testing.T) {
	srv, _ := newWhisperServer(t, http.StatusOK, `{"text":""}`)
	w, err := NewWhisper(WithAPIKey("test"), WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	_, err = w.Recognize(context.Background(), Audio{Path: savedClip(t)})
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestWhisperAPIError(t *testing.T) {
	srv, _ := newWhisperServer(t, http.StatusTooManyRequests, `{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`)
	w, err := NewWhisper(WithAPIKey("test"), WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	_, err = w.Recognize(context.Background(), Audio{Path: savedClip(t)})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "quota exceeded", apiErr.Message)
}

func TestWhisperRequiresKey(t *testing.T) {
	_, err := NewWhisper()
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
