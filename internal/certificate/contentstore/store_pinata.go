package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"certvault/internal/certificate/models"
	"certvault/pkg/platform/sentinel"
)

const (
	DefaultPinataAPIURL = "https://api.pinata.cloud"
	pinFilePath         = "/pinning/pinFileToIPFS"
	testAuthPath        = "/data/testAuthentication"
)

// PinataStore pins documents through the Pinata pinning API.
type PinataStore struct {
	apiURL    string
	apiKey    string
	apiSecret string
	client    *http.Client
	logger    *slog.Logger
}

// PinataOption configures a PinataStore.
type PinataOption func(*PinataStore)

func WithPinataURL(apiURL string) PinataOption {
	return func(s *PinataStore) {
		s.apiURL = strings.TrimRight(apiURL, "/")
	}
}

func WithPinataHTTPClient(c *http.Client) PinataOption {
	return func(s *PinataStore) {
		s.client = c
	}
}

func WithPinataLogger(logger *slog.Logger) PinataOption {
	return func(s *PinataStore) {
		s.logger = logger
	}
}

// NewPinataStore requires both API credentials.
func NewPinataStore(apiKey, apiSecret string, opts ...PinataOption) (*PinataStore, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("pinata API key and secret are required")
	}
	s := &PinataStore{
		apiURL:    DefaultPinataAPIURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinMetadata struct {
	Name string `json:"name"`
}

// Put uploads doc as a multipart file and returns the pinned address.
func (s *PinataStore) Put(ctx context.Context, doc []byte, name string) (models.ContentAddress, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(doc); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	meta, err := json.Marshal(pinMetadata{Name: name})
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+pinFilePath, &buf)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	s.authorize(req)

	var out pinResponse
	if err := s.do(req, &out); err != nil {
		return "", err
	}
	addr, err := models.ParseContentAddress(out.IpfsHash)
	if err != nil {
		return "", fmt.Errorf("pinata returned unusable hash %q: %w", out.IpfsHash, err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "document pinned",
			"content_address", string(addr),
			"pin_size", out.PinSize,
		)
	}
	return addr, nil
}

// Health checks that the credentials are accepted.
func (s *PinataStore) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+testAuthPath, nil)
	if err != nil {
		return err
	}
	s.authorize(req)
	return s.do(req, nil)
}

func (s *PinataStore) authorize(req *http.Request) {
	req.Header.Set("pinata_api_key", s.apiKey)
	req.Header.Set("pinata_secret_api_key", s.apiSecret)
}

func (s *PinataStore) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: pinata request: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: pinata returned HTTP %d", sentinel.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("pinata returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode pinata response: %w", err)
	}
	return nil
}
