package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"guyub/internal/engine"
)

const (
	kindItems = "items"
	kindLoans = "loans"
)

type KindQuery struct {
	Kind string `query:"kind" doc:"items (default) or loans"`
}

func (q KindQuery) resolve() (string, huma.StatusError) {
	switch q.Kind {
	case "", kindItems:
		return kindItems, nil
	case kindLoans:
		return kindLoans, nil
	}
	return "", newAPIError(http.StatusBadRequest, "Invalid kind. Use kind=items or kind=loans")
}

func registerInventory(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-inventory",
		Method:      http.MethodGet,
		Path:        "/inventory",
		Summary:     "List inventory items or loans",
		Description: "Items default to status active, loans to requested. Citizens only see their own loans.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		KindQuery
		ListQuery
		Mine string `query:"mine"`
	}) (*anyOutput, error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		kind, kindErr := input.resolve()
		if kindErr != nil {
			return nil, kindErr
		}
		opts := input.options()
		if kind == kindItems {
			p, err := h.e.ListItems(ctx, c, opts)
			if err != nil {
				return nil, h.fail(ctx, err)
			}
			return anyPage(p), nil
		}
		opts.Mine = parseBool(input.Mine)
		p, err := h.e.ListLoans(ctx, c, opts)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return anyPage(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "post-inventory",
		Method:      http.MethodPost,
		Path:        "/inventory",
		Summary:     "Create an item, request a loan, or settle a loan",
		Description: "kind=items creates an item (admin in scope). kind=loans without action requests a loan; " +
			"action=approve|reject|return with id settles it in one stock transaction.",
		RequestBody: jsonRequestBody[LoanRequest](api),
		Errors:      transitionErrors,
	}, func(ctx context.Context, input *struct {
		KindQuery
		Action string `query:"action" doc:"approve, reject or return (loans only)"`
		ID     string `query:"id"`
	}) (*anyOutput, error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		kind, kindErr := input.resolve()
		if kindErr != nil {
			return nil, kindErr
		}
		if kind == kindItems {
			if input.Action != "" {
				return nil, unknownAction(input.Action)
			}
			var req ItemRequest
			if err := decodeBody(ctx, &req); err != nil {
				return nil, err
			}
			it, err := h.e.CreateItem(ctx, c, req.input())
			if err != nil {
				return nil, h.fail(ctx, err)
			}
			return anyData(http.StatusCreated, it), nil
		}
		switch engine.LoanAction(input.Action) {
		case "":
			var req LoanRequest
			if err := decodeBody(ctx, &req); err != nil {
				return nil, err
			}
			l, err := h.e.RequestLoan(ctx, c, req.input())
			if err != nil {
				return nil, h.fail(ctx, err)
			}
			return anyData(http.StatusCreated, l), nil
		case engine.LoanApprove, engine.LoanReject, engine.LoanReturn:
			if err := requireID(input.ID); err != nil {
				return nil, err
			}
			var req ReasonRequest
			if err := decodeBody(ctx, &req); err != nil {
				return nil, err
			}
			l, err := h.e.SettleLoan(ctx, c, input.ID, engine.LoanAction(input.Action), req.Reason)
			if err != nil {
				return nil, h.fail(ctx, err)
			}
			return anyData(http.StatusOK, l), nil
		default:
			return nil, unknownAction(input.Action)
		}
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-inventory",
		Method:      http.MethodPut,
		Path:        "/inventory",
		Summary:     "Update an item or a loan",
		Description: "Item quantities that are negative are ignored and qtyAvailable is clamped to qtyTotal. " +
			"Loan owners may edit note, purpose and the need window while the loan is requested.",
		RequestBody: jsonRequestBody[ItemRequest](api),
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		KindQuery
		IDQuery
	}) (*anyOutput, error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		kind, kindErr := input.resolve()
		if kindErr != nil {
			return nil, kindErr
		}
		if err := requireID(input.ID); err != nil {
			return nil, err
		}
		if kind == kindItems {
			var req ItemRequest
			if err := decodeBody(ctx, &req); err != nil {
				return nil, err
			}
			it, err := h.e.UpdateItem(ctx, c, input.ID, req.input())
			if err != nil {
				return nil, h.fail(ctx, err)
			}
			return anyData(http.StatusOK, it), nil
		}
		var req LoanRequest
		if err := decodeBody(ctx, &req); err != nil {
			return nil, err
		}
		l, err := h.e.UpdateLoan(ctx, c, input.ID, req.input())
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return anyData(http.StatusOK, l), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-inventory",
		Method:      http.MethodDelete,
		Path:        "/inventory",
		Summary:     "Delete an item or a loan",
		Description: "Deleting a loan never changes stock.",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		KindQuery
		IDQuery
	}) (*deletedOutput, error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		kind, kindErr := input.resolve()
		if kindErr != nil {
			return nil, kindErr
		}
		if err := requireID(input.ID); err != nil {
			return nil, err
		}
		var err error
		if kind == kindItems {
			err = h.e.DeleteItem(ctx, c, input.ID)
		} else {
			err = h.e.DeleteLoan(ctx, c, input.ID)
		}
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respondDeleted(input.ID), nil
	})
}
