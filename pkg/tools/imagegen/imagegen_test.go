package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/colloquy/pkg/security"
)

type fakeModel struct {
	gotPrompt string
	gotRatio  string
	image     string
}

func (f *fakeModel) Generate(_ context.Context, prompt, aspectRatio string) (string, error) {
	f.gotPrompt = prompt
	f.gotRatio = aspectRatio
	return f.image, nil
}

func TestStripDataURLPrefix(t *testing.T) {
	assert.Equal(t, "AAAA", StripDataURLPrefix("data:image/png;base64,AAAA"))
	assert.Equal(t, "AAAA", StripDataURLPrefix("data:image/jpeg;base64,AAAA"))
	assert.Equal(t, "AAAA", StripDataURLPrefix("AAAA"))
}

type seenRequest struct {
	Header   http.Header
	PostForm url.Values
}

func newImgurServer(t *testing.T, status int, body string, seen *seenRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		seen.Header = r.Header.Clone()
		seen.PostForm = r.PostForm
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateUploadsToImgur(t *testing.T) {
	var seen seenRequest
	srv := newImgurServer(t, http.StatusOK, `{"data":{"link":"https://i.imgur.com/abc.png"},"success":true,"status":200}`, &seen)

	uploader, err := NewImgurUploader("client-123", security.DevelopmentPolicy(), WithEndpoint(srv.URL))
	require.NoError(t, err)
	model := &fakeModel{image: "data:image/png;base64,QUJD"}
	gen := NewGenerator(model, uploader)

	out, err := gen.Generate(context.Background(), Input{Prompt: "a red fox"})
	require.NoError(t, err)
	assert.Equal(t, "https://i.imgur.com/abc.png", out.ImageURL)
	assert.Equal(t, DefaultAspectRatio, model.gotRatio)

	assert.Equal(t, "Client-ID client-123", seen.Header.Get("Authorization"))
	assert.Equal(t, "QUJD", seen.PostForm.Get("image"))
	assert.Equal(t, "base64", seen.PostForm.Get("type"))
	assert.Equal(t, "prompt: a red fox", seen.PostForm.Get("description"))
}

func TestUploadRequiresClientID(t *testing.T) {
	uploader, err := NewImgurUploader("", security.OutboundPolicy{})
	require.NoError(t, err)
	_, err = uploader.Upload(context.Background(), "QUJD", "p")
	assert.ErrorIs(t, err, ErrMissingClientID)
}

func TestUploadErrors(t *testing.T) {
	var seen seenRequest
	srv := newImgurServer(t, http.StatusForbidden, `{"data":{"error":"bad client"},"success":false,"status":403}`, &seen)
	uploader, err := NewImgurUploader("id", security.DevelopmentPolicy(), WithEndpoint(srv.URL))
	require.NoError(t, err)
	_, err = uploader.Upload(context.Background(), "QUJD", "p")
	assert.ErrorContains(t, err, "403")

	_, err = NewImgurUploader("id", security.OutboundPolicy{}, WithEndpoint(srv.URL))
	assert.ErrorIs(t, err, security.ErrSchemeNotAllowed)
}

func TestGenerateValidatesInput(t *testing.T) {
	gen := NewGenerator(&fakeModel{}, nil)
	_, err := gen.Generate(context.Background(), Input{})
	assert.Error(t, err)
	_, err = gen.Generate(context.Background(), Input{Prompt: "x", AspectRatio: "2:1"})
	assert.Error(t, err)
}

func TestToolSchemaAndExecution(t *testing.T) {
	var seen seenRequest
	srv := newImgurServer(t, http.StatusOK, `{"data":{"link":"https://i.imgur.com/z.png"}}`, &seen)
	uploader, err := NewImgurUploader("id", security.DevelopmentPolicy(), WithEndpoint(srv.URL))
	require.NoError(t, err)
	model := &fakeModel{image: "QUJD"}

	def, err := NewGenerator(model, uploader).Tool()
	require.NoError(t, err)
	assert.Equal(t, ToolName, def.Name)

	raw, err := def.ParametersJSON()
	require.NoError(t, err)
	var schema map[string]any
	require.NoError(t, json.Unmarshal(raw, &schema))
	ratio := schema["properties"].(map[string]any)["aspectRatio"].(map[string]any)
	assert.Len(t, ratio["enum"], 9)
	assert.Equal(t, "16:9", ratio["default"])

	out, err := def.Execute(context.Background(), json.RawMessage(`{"prompt":"city at night","aspectRatio":"9:16"}`))
	require.NoError(t, err)
	assert.Equal(t, Output{ImageURL: "https://i.imgur.com/z.png"}, out)
	assert.Equal(t, "9:16", model.gotRatio)
}

func TestSizeFor(t *testing.T) {
	assert.Equal(t, "1024x1024", sizeFor("1:1"))
	assert.Equal(t, "1792x1024", sizeFor("21:9"))
	assert.Equal(t, "1024x1792", sizeFor("9:16"))
}
