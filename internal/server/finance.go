package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"guyub/internal/domain"
)

func registerFinance(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-finance",
		Method:      http.MethodGet,
		Path:        "/finance",
		Summary:     "List finance transactions or summarize them",
		Description: "Defaults to approved transactions, newest occurredAt first. action=summary returns " +
			"income, expense and balance over the newest transactions of the filter.",
		Errors: []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ListQuery
		WindowQuery
		Action string `query:"action" doc:"summary"`
	}) (*anyOutput, error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := input.options()
		if err := input.apply(&opts); err != nil {
			return nil, err
		}
		switch input.Action {
		case "":
			p, err := h.e.ListFinance(ctx, c, opts)
			if err != nil {
				return nil, h.fail(ctx, err)
			}
			return anyPage(p), nil
		case "summary":
			sum, err := h.e.FinanceSummary(ctx, c, opts)
			if err != nil {
				return nil, h.fail(ctx, err)
			}
			return anyData(http.StatusOK, sum), nil
		default:
			return nil, unknownAction(input.Action)
		}
	})

	huma.Register(api, huma.Operation{
		OperationID: "post-finance",
		Method:      http.MethodPost,
		Path:        "/finance",
		Summary:     "Record a transaction or decide one",
		Description: "Without action records a pending transaction; admins in scope may pass forceApproved. " +
			"action=approve|reject takes id and an optional {reason}.",
		RequestBody: jsonRequestBody[FinanceRequest](api),
		Errors:      transitionErrors,
	}, func(ctx context.Context, input *struct {
		Action string `query:"action" doc:"approve or reject"`
		ID     string `query:"id"`
	}) (*dataOutput[domain.FinanceTransaction], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		switch input.Action {
		case "":
			var req FinanceRequest
			if err := decodeBody(ctx, &req); err != nil {
				return nil, err
			}
			t, err := h.e.CreateFinance(ctx, c, req.input())
			if err != nil {
				return nil, h.fail(ctx, err)
			}
			return respondCreated(t), nil
		case "approve", "reject":
			if err := requireID(input.ID); err != nil {
				return nil, err
			}
			var req ReasonRequest
			if err := decodeBody(ctx, &req); err != nil {
				return nil, err
			}
			t, err := h.e.DecideFinance(ctx, c, input.ID, input.Action == "approve", req.Reason)
			if err != nil {
				return nil, h.fail(ctx, err)
			}
			return respond(t), nil
		default:
			return nil, unknownAction(input.Action)
		}
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-finance",
		Method:      http.MethodPut,
		Path:        "/finance",
		Summary:     "Update finance transaction",
		Description: "An amount that is not a positive number is ignored.",
		RequestBody: jsonRequestBody[FinanceRequest](api),
		Errors:      writeErrors,
	}, func(ctx context.Context, input *IDQuery) (*dataOutput[domain.FinanceTransaction], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireID(input.ID); err != nil {
			return nil, err
		}
		var req FinanceRequest
		if err := decodeBody(ctx, &req); err != nil {
			return nil, err
		}
		t, err := h.e.UpdateFinance(ctx, c, input.ID, req.input())
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-finance",
		Method:      http.MethodDelete,
		Path:        "/finance",
		Summary:     "Delete finance transaction",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *IDQuery) (*deletedOutput, error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireID(input.ID); err != nil {
			return nil, err
		}
		if err := h.e.DeleteFinance(ctx, c, input.ID); err != nil {
			return nil, h.fail(ctx, err)
		}
		return respondDeleted(input.ID), nil
	})
}
