package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"guyub/internal/domain"
)

var transitionErrors = append(append([]int{}, writeErrors...), http.StatusConflict)

func registerComplaints(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-complaints",
		Method:      http.MethodGet,
		Path:        "/complaints",
		Summary:     "List complaints",
		Description: "Defaults to open complaints. Citizens only see their own; admins may pass mine=1.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ListQuery
		WindowQuery
		Mine string `query:"mine"`
	}) (*pageOutput[domain.Complaint], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := input.options()
		if err := input.apply(&opts); err != nil {
			return nil, err
		}
		opts.Mine = parseBool(input.Mine)
		p, err := h.e.ListComplaints(ctx, c, opts)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respondPage(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-complaint",
		Method:      http.MethodGet,
		Path:        "/complaints/{id}",
		Summary:     "Get complaint",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*dataOutput[domain.Complaint], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cp, err := h.e.GetComplaint(ctx, c, input.ID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respond(cp), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "post-complaint",
		Method:      http.MethodPost,
		Path:        "/complaints",
		Summary:     "Create complaint or run an action",
		Description: "Without action creates a complaint. action=assign takes {assignedTo, assignedRole}; " +
			"action=updateStatus takes {status, note}. Both require id and an admin in scope.",
		RequestBody: jsonRequestBody[ComplaintRequest](api),
		Errors:      transitionErrors,
	}, func(ctx context.Context, input *struct {
		Action string `query:"action" doc:"assign or updateStatus"`
		ID     string `query:"id"`
	}) (*dataOutput[domain.Complaint], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		switch input.Action {
		case "":
			var req ComplaintRequest
			if err := decodeBody(ctx, &req); err != nil {
				return nil, err
			}
			cp, err := h.e.CreateComplaint(ctx, c, req.input())
			if err != nil {
				return nil, h.fail(ctx, err)
			}
			return respondCreated(cp), nil
		case "assign":
			if err := requireID(input.ID); err != nil {
				return nil, err
			}
			var req AssignRequest
			if err := decodeBody(ctx, &req); err != nil {
				return nil, err
			}
			cp, err := h.e.AssignComplaint(ctx, c, input.ID, req.AssignedTo, req.AssignedRole)
			if err != nil {
				return nil, h.fail(ctx, err)
			}
			return respond(cp), nil
		case "updateStatus":
			if err := requireID(input.ID); err != nil {
				return nil, err
			}
			var req StatusRequest
			if err := decodeBody(ctx, &req); err != nil {
				return nil, err
			}
			cp, err := h.e.UpdateComplaintStatus(ctx, c, input.ID, req.Status, req.Note)
			if err != nil {
				return nil, h.fail(ctx, err)
			}
			return respond(cp), nil
		default:
			return nil, unknownAction(input.Action)
		}
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-complaint",
		Method:      http.MethodPut,
		Path:        "/complaints",
		Summary:     "Update complaint",
		Description: "Owners may edit free-text fields while the complaint is open. Admins in scope may also move the status.",
		RequestBody: jsonRequestBody[ComplaintRequest](api),
		Errors:      transitionErrors,
	}, func(ctx context.Context, input *IDQuery) (*dataOutput[domain.Complaint], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireID(input.ID); err != nil {
			return nil, err
		}
		var req ComplaintRequest
		if err := decodeBody(ctx, &req); err != nil {
			return nil, err
		}
		cp, err := h.e.UpdateComplaint(ctx, c, input.ID, req.input())
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respond(cp), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-complaint",
		Method:      http.MethodDelete,
		Path:        "/complaints",
		Summary:     "Delete complaint",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *IDQuery) (*deletedOutput, error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireID(input.ID); err != nil {
			return nil, err
		}
		if err := h.e.DeleteComplaint(ctx, c, input.ID); err != nil {
			return nil, h.fail(ctx, err)
		}
		return respondDeleted(input.ID), nil
	})
}
