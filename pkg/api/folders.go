package api

import (
	"context"
	"net/http"

	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

type FolderInput struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}

func (c *Client) ListFolders(ctx context.Context) ([]leaseqa.Folder, error) {
	var folders []leaseqa.Folder
	if err := c.call(ctx, "list folders", http.MethodGet, c.endpoint("folders"), nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (c *Client) CreateFolder(ctx context.Context, in FolderInput) (*leaseqa.Folder, error) {
	var f leaseqa.Folder
	if err := c.call(ctx, "create folder", http.MethodPost, c.endpoint("folders"), in, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) UpdateFolder(ctx context.Context, id string, in FolderInput) (*leaseqa.Folder, error) {
	var f leaseqa.Folder
	if err := c.call(ctx, "update folder", http.MethodPut, c.endpoint("folders", id), in, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) DeleteFolder(ctx context.Context, id string) error {
	return c.call(ctx, "delete folder", http.MethodDelete, c.endpoint("folders", id), nil, nil)
}

func (c *Client) StatsOverview(ctx context.Context) (*leaseqa.StatsOverview, error) {
	var s leaseqa.StatsOverview
	if err := c.call(ctx, "stats overview", http.MethodGet, c.endpoint("stats", "overview"), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
