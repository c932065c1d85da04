package services

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxImageBytes caps a decoded image.
const MaxImageBytes = 5 << 20

var errNoMediaStore = errors.New("no media store configured")

// MediaStore turns raw image data into a durable URI.
type MediaStore interface {
	Upload(ctx context.Context, image string) (string, error)
}

func invalidImage(reason string) error {
	return &ValidationError{Field: "image", Reason: reason}
}

// decodeDataURI parses "data:<mime>;base64,<payload>". Bare base64 is
// accepted and treated as JPEG. Every failure is a *ValidationError.
func decodeDataURI(image string) (string, []byte, error) {
	contentType := "image/jpeg"
	payload := image
	if strings.HasPrefix(image, "data:") {
		comma := strings.Index(image, ",")
		if comma < 0 {
			return "", nil, invalidImage("malformed data URI")
		}
		meta := image[len("data:"):comma]
		if !strings.HasSuffix(meta, ";base64") {
			return "", nil, invalidImage("data URI must be base64 encoded")
		}
		contentType = strings.TrimSuffix(meta, ";base64")
		payload = image[comma+1:]
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", nil, invalidImage("payload is not an image")
	}
	if len(payload) > base64.StdEncoding.EncodedLen(MaxImageBytes) {
		return "", nil, invalidImage(fmt.Sprintf("exceeds %d bytes", MaxImageBytes))
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, invalidImage("invalid base64 payload")
	}
	if len(data) == 0 {
		return "", nil, invalidImage("is empty")
	}
	if len(data) > MaxImageBytes {
		return "", nil, invalidImage(fmt.Sprintf("exceeds %d bytes", MaxImageBytes))
	}
	return contentType, data, nil
}

var imageExts = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func imageExt(contentType string) string {
	if ext, ok := imageExts[contentType]; ok {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ".img"
}

// LocalMediaStore writes images to a directory served as static files.
type LocalMediaStore struct {
	dir     string
	baseURL string
}

// NewLocalMediaStore creates the directory if needed.
func NewLocalMediaStore(dir, baseURL string) (*LocalMediaStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	return &LocalMediaStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Upload stores image and returns its public URL.
func (s *LocalMediaStore) Upload(_ context.Context, image string) (string, error) {
	contentType, data, err := decodeDataURI(image)
	if err != nil {
		return "", err
	}

	name := uuid.NewString() + imageExt(contentType)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return s.baseURL + "/" + name, nil
}

// CloudinaryStore uploads images with Cloudinary's signed upload API.
type CloudinaryStore struct {
	cloudName string
	apiKey    string
	apiSecret string
	folder    string

	Endpoint   string
	HTTPClient *http.Client
}

// NewCloudinaryStore returns a store for the given account.
func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary credentials are incomplete")
	}
	return &CloudinaryStore{
		cloudName:  cloudName,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		folder:     folder,
		Endpoint:   "https://api.cloudinary.com/v1_1/" + cloudName + "/image/upload",
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends image to Cloudinary and returns the secure URL.
func (s *CloudinaryStore) Upload(ctx context.Context, image string) (string, error) {
	contentType, data, err := decodeDataURI(image)
	if err != nil {
		return "", err
	}

	publicID := uuid.NewString()
	if s.folder != "" {
		publicID = s.folder + "/" + publicID
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	form := url.Values{}
	form.Set("file", "data:"+contentType+";base64,"+base64.StdEncoding.EncodeToString(data))
	form.Set("api_key", s.apiKey)
	form.Set("public_id", publicID)
	form.Set("timestamp", timestamp)
	form.Set("signature", s.sign(publicID, timestamp))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloudinary request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read cloudinary response: %w", err)
	}

	var out cloudinaryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("cloudinary returned %d: %w", res.StatusCode, err)
	}
	if res.StatusCode >= http.StatusBadRequest || out.SecureURL == "" {
		msg := http.StatusText(res.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("cloudinary returned %d: %s", res.StatusCode, msg)
	}
	return out.SecureURL, nil
}

// sign computes the SHA-1 request signature over the sorted signed params.
func (s *CloudinaryStore) sign(publicID, timestamp string) string {
	payload := fmt.Sprintf("public_id=%s&timestamp=%s%s", publicID, timestamp, s.apiSecret)
	return fmt.Sprintf("%x", sha1.Sum([]byte(payload)))
}
