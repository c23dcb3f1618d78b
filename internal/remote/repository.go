package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"pkt.systems/modelsync/schema"
)

const (
	opFetchTypes       = "fetch types"
	opFetchComponents  = "fetch components"
	opInsertType       = "insert type"
	opUpdateType       = "update type"
	opInsertComponent  = "insert component"
	opUpdateComponent  = "update component"
	opInitAssetStorage = "init asset storage"
)

// Repository is a handle bound to one remote repository.
type Repository struct {
	client *Client
	repo   schema.RepoName
}

// Name returns the repository this handle addresses.
func (r *Repository) Name() schema.RepoName {
	return r.repo
}

// FetchTypes lists every content type model of the repository.
func (r *Repository) FetchTypes(ctx context.Context) ([]schema.TypeModel, error) {
	data, err := r.client.do(ctx, request{
		op: opFetchTypes, repo: r.repo, base: r.client.customTypes,
		method: http.MethodGet, path: "customtypes",
	})
	if err != nil {
		return nil, err
	}
	models, err := schema.DecodeTypeModels(data)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", opFetchTypes, r.repo, err)
	}
	return models, nil
}

// FetchComponents lists every component model of the repository. The
// returned models carry no library.
func (r *Repository) FetchComponents(ctx context.Context) ([]schema.ComponentModel, error) {
	data, err := r.client.do(ctx, request{
		op: opFetchComponents, repo: r.repo, base: r.client.customTypes,
		method: http.MethodGet, path: "slices",
	})
	if err != nil {
		return nil, err
	}
	models, err := schema.DecodeComponentModels(data)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", opFetchComponents, r.repo, err)
	}
	return models, nil
}

// PushType inserts the model, updating it when the repository already has it.
func (r *Repository) PushType(ctx context.Context, model schema.TypeModel) error {
	return r.upsert(ctx, model.ID, model.Raw, "customtypes", opInsertType, opUpdateType)
}

// PushComponent inserts the model, updating it when the repository already has it.
func (r *Repository) PushComponent(ctx context.Context, model schema.ComponentModel) error {
	return r.upsert(ctx, model.ID, model.Raw, "slices", opInsertComponent, opUpdateComponent)
}

// InitAssetStorage prepares the repository's asset storage permissions.
// The call is repeated on every push run and must be idempotent server-side.
func (r *Repository) InitAssetStorage(ctx context.Context) error {
	_, err := r.client.do(ctx, request{
		op: opInitAssetStorage, repo: r.repo, base: r.client.aclProvider,
		method: http.MethodPost, path: "create",
	})
	return err
}

func (r *Repository) upsert(ctx context.Context, id string, raw []byte, resource, insertOp, updateOp string) error {
	if id == "" || len(raw) == 0 {
		return fmt.Errorf("%w: %s without id or definition", schema.ErrInvalidModel, resource)
	}
	_, err := r.client.do(ctx, request{
		op: insertOp, repo: r.repo, base: r.client.customTypes,
		method: http.MethodPost, path: resource + "/insert", body: raw,
	})
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		return err
	}
	if r.client.conflict == schema.ConflictReject {
		return fmt.Errorf("%w: %q: %w", schema.ErrModelExists, id, err)
	}
	r.client.logger(ctx).Trace("remote model exists, updating", "repo", r.repo, "model", id)
	_, err = r.client.do(ctx, request{
		op: updateOp, repo: r.repo, base: r.client.customTypes,
		method: http.MethodPost, path: resource + "/update", body: raw,
	})
	return err
}
