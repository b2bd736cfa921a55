// Package github 封装代码托管平台的 REST 接口：
// 解析默认分支、递归列出文件树、按路径抓取文件内容。
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrUnauthorized 凭据无效（401）
	ErrUnauthorized = errors.New("仓库访问凭据无效")
	// ErrNotFound 仓库或路径不存在（404）
	ErrNotFound = errors.New("仓库不存在或无访问权限")
)

type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient 创建 API 客户端。token 为空时走匿名访问（受更严格的限流）。
func NewClient(token, baseURL string, timeoutSeconds int) *Client {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 15
	}

	httpClient := &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), src)
		httpClient.Timeout = time.Duration(timeoutSeconds) * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// TreeEntry 文件树中的一项
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // blob / tree
	Size int    `json:"size"`
}

// DefaultBranch 解析仓库默认分支
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	var result struct {
		DefaultBranch string `json:"default_branch"`
	}
	url := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, owner, repo)
	if err := c.get(ctx, url, &result); err != nil {
		return "", err
	}
	if result.DefaultBranch == "" {
		return "main", nil
	}
	return result.DefaultBranch, nil
}

// ListTree 递归列出分支下的全部文件（仅 blob）
func (c *Client) ListTree(ctx context.Context, owner, repo, branch string) ([]TreeEntry, error) {
	var result struct {
		Tree      []TreeEntry `json:"tree"`
		Truncated bool        `json:"truncated"`
	}
	url := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1", c.baseURL, owner, repo, branch)
	if err := c.get(ctx, url, &result); err != nil {
		return nil, err
	}

	blobs := make([]TreeEntry, 0, len(result.Tree))
	for _, entry := range result.Tree {
		if entry.Type == "blob" {
			blobs = append(blobs, entry)
		}
	}
	return blobs, nil
}

// FileContent 抓取单个文件内容，base64 解码为文本
func (c *Client) FileContent(ctx context.Context, owner, repo, path, ref string) (string, error) {
	var result struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s", c.baseURL, owner, repo, path, ref)
	if err := c.get(ctx, url, &result); err != nil {
		return "", err
	}

	if result.Encoding != "base64" {
		return result.Content, nil
	}

	// API 返回的 base64 带换行
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(result.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("failed to decode content of %s: %w", path, err)
	}
	return string(decoded), nil
}

func (c *Client) get(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("github API error: %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(target)
}
