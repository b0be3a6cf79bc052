package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/flashdeck/internal/assets"
)

const maxCardSize = 10 << 20 // 10 MB

var (
	imageExt = map[string]string{
		"image/png":     ".png",
		"image/jpeg":    ".jpg",
		"image/gif":     ".gif",
		"image/webp":    ".webp",
		"image/svg+xml": ".svg",
	}

	unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

type uploadResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s *Server) uploadCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.cards == nil {
		return mcp.NewToolResultError("upload needs the local card folder"), nil
	}
	source, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	word := req.GetString("word", "")

	var (
		data []byte
		ext  string
	)
	if strings.HasPrefix(source, "data:") {
		data, ext, err = decodeDataURI(source)
	} else {
		data, ext, err = download(ctx, source)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if ext == "" {
		ext = imageExt[http.DetectContentType(data)]
	}
	if err := checkContent(data, ext); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entry, err := s.cards.Write(s.folderID, cardName(word, source, ext), bytes.NewReader(data))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save card: %v", err)), nil
	}

	out, _ := json.Marshal(uploadResult{ID: entry.ID, URL: assets.FormLocal.CardURL(entry.ID)})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a base64 data:<mediatype>;base64,<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}
	ext, ok := imageExt[mediaType]
	if !ok {
		return nil, "", fmt.Errorf("unsupported image type in data URI: %s", mediaType)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(encoded); err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if len(data) > maxCardSize {
		return nil, "", fmt.Errorf("file too large: %d bytes (max %d)", len(data), maxCardSize)
	}
	return data, ext, nil
}

// download fetches an image over http(s), refusing loopback and metadata hosts.
func download(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid request: %w", err)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCardSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxCardSize {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", maxCardSize)
	}

	mediaType, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	return data, imageExt[strings.TrimSpace(mediaType)], nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client report DNS failures
		}
		ip = ips[0]
	}
	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// cardName picks the stored file name. A word becomes the name stem so the
// card resolves for it; otherwise the URL's base name or a random id is used.
func cardName(word, source, ext string) string {
	stem := strings.ToLower(strings.TrimSpace(word))
	if stem == "" && !strings.HasPrefix(source, "data:") {
		if parsed, err := url.Parse(source); err == nil {
			base := path.Base(parsed.Path)
			stem = strings.TrimSuffix(base, path.Ext(base))
		}
	}
	stem = unsafeNameRe.ReplaceAllString(stem, "_")
	if stem == "" || stem == "." || stem == "_" {
		stem = uuid.NewString()
	}
	return stem + ext
}

// checkContent verifies data is an image matching ext.
func checkContent(data []byte, ext string) error {
	if ext == "" {
		return fmt.Errorf("content is not a supported image")
	}
	if ext == ".svg" {
		head := data[:min(len(data), 1024)]
		if !bytes.Contains(head, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be a valid SVG (missing <svg tag)")
		}
		return nil
	}
	detected := http.DetectContentType(data)
	if imageExt[detected] != ext {
		return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
	}
	return nil
}
