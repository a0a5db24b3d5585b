package imagegen

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/colloquy/pkg/security"
)

const DefaultImgurEndpoint = "https://api.imgur.com/3/image"

var ErrMissingClientID = errors.New("IMGUR_CLIENT_ID not set")

// ImgurUploader posts base64 images to the Imgur upload API.
type ImgurUploader struct {
	ClientID   string
	Endpoint   string
	HTTPClient *http.Client
}

type ImgurOption func(*ImgurUploader)

func WithEndpoint(endpoint string) ImgurOption {
	return func(u *ImgurUploader) {
		u.Endpoint = endpoint
	}
}

func WithHTTPClient(c *http.Client) ImgurOption {
	return func(u *ImgurUploader) {
		u.HTTPClient = c
	}
}

// NewImgurUploader checks the endpoint against policy before returning.
func NewImgurUploader(clientID string, policy security.OutboundPolicy, opts ...ImgurOption) (*ImgurUploader, error) {
	u := &ImgurUploader{
		ClientID:   clientID,
		Endpoint:   DefaultImgurEndpoint,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(u)
	}
	if err := policy.Validate(u.Endpoint); err != nil {
		return nil, errors.Wrap(err, "imgur endpoint")
	}
	return u, nil
}

type imgurResponse struct {
	Data struct {
		Link  string `json:"link"`
		Error any    `json:"error"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
}

func (u *ImgurUploader) Upload(ctx context.Context, base64Image string, prompt string) (string, error) {
	if u.ClientID == "" {
		return "", ErrMissingClientID
	}

	form := url.Values{}
	form.Set("image", base64Image)
	form.Set("type", "base64")
	form.Set("title", "Simple upload")
	form.Set("description", "prompt: "+prompt)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Client-ID "+u.ClientID)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := u.HTTPClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "imgur request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "read imgur response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Errorf("imgur upload failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed imgurResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Wrap(err, "decode imgur response")
	}
	if parsed.Data.Link == "" {
		return "", errors.Errorf("imgur response has no link (status %d)", parsed.Status)
	}
	return parsed.Data.Link, nil
}
