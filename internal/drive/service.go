package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAPIBase    = "https://www.googleapis.com/drive/v3"
	defaultUploadBase = "https://www.googleapis.com/upload/drive/v3"

	folderMimeType = "application/vnd.google-apps.folder"

	// DefaultCategory is used when the caller supplies an empty or
	// whitespace-only category name.
	DefaultCategory = "Uncategorized"
)

// ProviderError is any non-success response from the storage provider,
// carrying enough of the response for diagnostics.
type ProviderError struct {
	Op     string
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("drive: %s failed: status %d: %s", e.Op, e.Status, e.Body)
}

// Service talks to the user's Drive with a single short-lived access token.
// A Service is built per request from a freshly ensured token; it holds no
// cross-request state. Folder lookups are not cached beyond the request.
type Service struct {
	httpClient  *http.Client
	apiBase     string
	uploadBase  string
	rootName    string
	accessToken string
}

type Option func(*Service)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// WithBaseURLs points the service at a different API host. Tests use this
// to target an httptest server.
func WithBaseURLs(apiBase, uploadBase string) Option {
	return func(s *Service) {
		s.apiBase = strings.TrimRight(apiBase, "/")
		s.uploadBase = strings.TrimRight(uploadBase, "/")
	}
}

// WithRootName overrides the application root folder name and tag.
func WithRootName(name string) Option {
	return func(s *Service) { s.rootName = name }
}

func New(accessToken string, opts ...Option) *Service {
	s := &Service{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		apiBase:     defaultAPIBase,
		uploadBase:  defaultUploadBase,
		rootName:    "ImageApp",
		accessToken: accessToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type fileResource struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WebViewLink string `json:"webViewLink"`
}

type fileList struct {
	Files []fileResource `json:"files"`
}

// UploadResult references the uploaded object in external storage.
type UploadResult struct {
	FileID      string `json:"file_id"`
	WebViewLink string `json:"web_view_link"`
	PublicURL   string `json:"public_url"`
}

// EnsureRootFolder locates the application's tagged root folder, creating and
// tagging it when absent. Safe to call repeatedly; a second call finds the
// folder created by the first.
func (s *Service) EnsureRootFolder(ctx context.Context) (string, error) {
	q := NewQuery().
		Folders().
		NotTrashed().
		AppProperty("app", s.rootName).
		AppProperty("role", "root")

	if id, err := s.findFolder(ctx, q.String()); err != nil || id != "" {
		return id, err
	}

	return s.createFolder(ctx, map[string]any{
		"name":     s.rootName,
		"mimeType": folderMimeType,
		"appProperties": map[string]string{
			"app":  s.rootName,
			"role": "root",
		},
	})
}

// EnsureCategoryFolder locates or creates the named category folder directly
// under root. Matching is exact and case-sensitive; there is no recursive
// search. Concurrent calls for the same category may both create a folder —
// Drive permits duplicate names and no lock is taken here. Callers needing
// strict uniqueness must serialize on (user, category) themselves.
func (s *Service) EnsureCategoryFolder(ctx context.Context, rootID, category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		category = DefaultCategory
	}

	q := NewQuery().
		InParents(rootID).
		Folders().
		NotTrashed().
		Name(category)

	if id, err := s.findFolder(ctx, q.String()); err != nil || id != "" {
		return id, err
	}

	return s.createFolder(ctx, map[string]any{
		"name":     category,
		"parents":  []string{rootID},
		"mimeType": folderMimeType,
		"appProperties": map[string]string{
			"app":      s.rootName,
			"role":     "category",
			"category": category,
		},
	})
}

// UploadFile creates the file under folderID, then grants anyone-with-link
// read access. Files are private until the permission call succeeds; if it
// fails the created object is left behind for the caller to clean up.
func (s *Service) UploadFile(ctx context.Context, name string, content []byte, mimeType, folderID string) (UploadResult, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	metadata := map[string]any{"name": name}
	if folderID != "" {
		metadata["parents"] = []string{folderID}
	}

	body, contentType, err := multipartRelated(metadata, mimeType, content)
	if err != nil {
		return UploadResult{}, err
	}

	endpoint := s.uploadBase + "/files?uploadType=multipart&fields=id,webViewLink&supportsAllDrives=true"
	resp, err := s.do(ctx, http.MethodPost, endpoint, contentType, body)
	if err != nil {
		return UploadResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UploadResult{}, providerError("upload file", resp)
	}

	var created fileResource
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return UploadResult{}, fmt.Errorf("drive: decode upload response: %w", err)
	}

	if err := s.createPublicPermission(ctx, created.ID); err != nil {
		return UploadResult{}, err
	}

	return UploadResult{
		FileID:      created.ID,
		WebViewLink: created.WebViewLink,
		PublicURL:   PublicURL(created.ID),
	}, nil
}

// DeleteFile permanently removes the file. A missing file (404) counts as
// success so deletes stay idempotent.
func (s *Service) DeleteFile(ctx context.Context, fileID string) error {
	endpoint := fmt.Sprintf("%s/files/%s?supportsAllDrives=true", s.apiBase, url.PathEscape(fileID))
	resp, err := s.do(ctx, http.MethodDelete, endpoint, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return providerError("delete file", resp)
	}
	return nil
}

// TrashFile moves the file to the trash instead of deleting it permanently.
func (s *Service) TrashFile(ctx context.Context, fileID string) error {
	payload, err := json.Marshal(map[string]bool{"trashed": true})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/files/%s?supportsAllDrives=true", s.apiBase, url.PathEscape(fileID))
	resp, err := s.do(ctx, http.MethodPatch, endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return providerError("trash file", resp)
	}
	return nil
}

// PublicURL returns the stable direct-view URL for a file, embeddable in an
// <img> tag once the anyone-with-link permission is in place.
func PublicURL(fileID string) string {
	return "https://drive.google.com/uc?export=view&id=" + url.QueryEscape(fileID)
}

func (s *Service) findFolder(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "files(id,name)")
	params.Set("pageSize", "1")
	params.Set("supportsAllDrives", "true")

	resp, err := s.do(ctx, http.MethodGet, s.apiBase+"/files?"+params.Encode(), "", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", providerError("list folders", resp)
	}

	var list fileList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", fmt.Errorf("drive: decode folder list: %w", err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].ID, nil
}

func (s *Service) createFolder(ctx context.Context, metadata map[string]any) (string, error) {
	payload, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}

	endpoint := s.apiBase + "/files?fields=id&supportsAllDrives=true"
	resp, err := s.do(ctx, http.MethodPost, endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", providerError("create folder", resp)
	}

	var created fileResource
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("drive: decode folder response: %w", err)
	}
	return created.ID, nil
}

func (s *Service) createPublicPermission(ctx context.Context, fileID string) error {
	payload, err := json.Marshal(map[string]string{
		"type": "anyone",
		"role": "reader",
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/files/%s/permissions?supportsAllDrives=true", s.apiBase, url.PathEscape(fileID))
	resp, err := s.do(ctx, http.MethodPost, endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return providerError("create permission", resp)
	}
	return nil
}

func (s *Service) do(ctx context.Context, method, endpoint, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return s.httpClient.Do(req)
}

// multipartRelated builds the two-part body Drive expects for a multipart
// upload: a JSON metadata part followed by the media part.
func multipartRelated(metadata map[string]any, mimeType string, content []byte) (io.Reader, string, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/json; charset=UTF-8"},
	})
	if err != nil {
		return nil, "", err
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return nil, "", err
	}

	mediaPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {mimeType},
	})
	if err != nil {
		return nil, "", err
	}
	if _, err := mediaPart.Write(content); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	contentType := "multipart/related; boundary=" + w.Boundary()
	return &buf, contentType, nil
}

func providerError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &ProviderError{
		Op:     op,
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}
