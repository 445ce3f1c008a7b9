package testutil

import (
	"net/http"

	"wordhub/pkg/domain"
	"wordhub/pkg/platform/middleware/admin"
	request "wordhub/pkg/platform/middleware/request"
)

// WithActor marks the request as sent on behalf of actor, the way the chat
// bridge does.
func WithActor(req *http.Request, actor domain.ActorID) *http.Request {
	req.Header.Set(request.HeaderActorID, actor.String())
	return req
}

// WithAdminToken sets the shared admin token header.
func WithAdminToken(req *http.Request, token string) *http.Request {
	req.Header.Set(admin.HeaderAdminToken, token)
	return req
}
