package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"guyub/internal/domain"
	"guyub/internal/engine"
)

func registerUsers(api huma.API, h handlers) {
	type uidQuery struct {
		UID string `query:"uid" doc:"Defaults to the caller"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "Read a profile",
		Description: "Callers read their own profile; super admins may read any.",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *uidQuery) (*dataOutput[domain.Profile], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := h.e.GetProfile(ctx, c, input.UID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respond(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "register-user",
		Method:      http.MethodPost,
		Path:        "/users",
		Summary:     "Create or complete the caller's own profile",
		RequestBody: jsonRequestBody[ProfileRequest](api),
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*dataOutput[domain.Profile], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var req ProfileRequest
		if err := decodeBody(ctx, &req); err != nil {
			return nil, err
		}
		p, err := h.e.RegisterSelf(ctx, c, req.patch())
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respondCreated(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPut,
		Path:        "/users",
		Summary:     "Update a profile",
		Description: "role and status are applied only for super admins.",
		RequestBody: jsonRequestBody[ProfileRequest](api),
		Errors:      writeErrors,
	}, func(ctx context.Context, input *uidQuery) (*dataOutput[domain.Profile], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var req ProfileRequest
		if err := decodeBody(ctx, &req); err != nil {
			return nil, err
		}
		p, err := h.e.UpdateProfile(ctx, c, input.UID, req.patch())
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respond(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bootstrap-admin",
		Method:      http.MethodPost,
		Path:        "/bootstrap-admin",
		Summary:     "Promote the caller to super admin when none exists",
		Errors:      []int{http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*dataOutput[engine.BootstrapResult], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := h.e.BootstrapAdmin(ctx, c)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respond(res), nil
	})
}
