package routes

import (
	"context"
	"encoding/json"

	"routecast/internal/common"
	"routecast/internal/domain/directory"
	"routecast/internal/domain/notification"
)

// documentParams is the parameter shape for document-scoped routes.
type documentParams struct {
	DocumentID   string `json:"documentId"`
	DocumentName string `json:"documentName"`
	AuthorID     string `json:"authorId"`
}

func decodeDocumentParams(req *notification.DispatchRequest) (documentParams, error) {
	var p documentParams
	if len(req.Parameters) > 0 {
		if err := json.Unmarshal(req.Parameters, &p); err != nil {
			return p, common.NewValidationError("malformed parameters: " + err.Error())
		}
	}
	if p.DocumentID == "" {
		return p, common.NewMissingParameterError(req.Route, "documentId")
	}
	if p.AuthorID == "" {
		return p, common.NewMissingParameterError(req.Route, "authorId")
	}
	return p, nil
}

// DocumentApprovedResolver notifies a document's author (and their
// deputies) that the document passed approval.
type DocumentApprovedResolver struct {
	dir             directory.Directory
	includeDeputies bool
}

// NewDocumentApprovedResolver creates the DocumentApproved resolver.
func NewDocumentApprovedResolver(dir directory.Directory, includeDeputies bool) *DocumentApprovedResolver {
	return &DocumentApprovedResolver{dir: dir, includeDeputies: includeDeputies}
}

// Route returns the handled route name.
func (r *DocumentApprovedResolver) Route() string { return "DocumentApproved" }

// ResolveRecipients expands the document's author to the effective notified
// set.
func (r *DocumentApprovedResolver) ResolveRecipients(ctx context.Context, req *notification.DispatchRequest) ([]notification.User, error) {
	params, err := decodeDocumentParams(req)
	if err != nil {
		return nil, err
	}

	return directory.ExpandWithDeputies(ctx, r.dir, []string{params.AuthorID}, r.includeDeputies)
}

// ResolveTemplateData builds the render fields for the approval template.
func (r *DocumentApprovedResolver) ResolveTemplateData(ctx context.Context, req *notification.DispatchRequest) (map[string]any, error) {
	params, err := decodeDocumentParams(req)
	if err != nil {
		return nil, err
	}

	name := params.DocumentName
	if name == "" {
		name = params.DocumentID
	}
	return map[string]any{
		"DocumentName": name,
	}, nil
}
