package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"guyub/internal/domain"
)

var writeErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusInternalServerError,
}

type IDQuery struct {
	ID string `query:"id"`
}

func registerAnnouncements(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-announcements",
		Method:      http.MethodGet,
		Path:        "/announcements",
		Summary:     "List announcements",
		Description: "Citizens only see published announcements. The first page puts pinned entries first.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ListQuery
	}) (*pageOutput[domain.Announcement], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := h.e.ListAnnouncements(ctx, c, input.options())
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respondPage(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-announcement",
		Method:      http.MethodPost,
		Path:        "/announcements",
		Summary:     "Create announcement",
		RequestBody: jsonRequestBody[AnnouncementRequest](api),
		Errors:      writeErrors,
	}, func(ctx context.Context, _ *struct{}) (*dataOutput[domain.Announcement], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var req AnnouncementRequest
		if err := decodeBody(ctx, &req); err != nil {
			return nil, err
		}
		a, err := h.e.CreateAnnouncement(ctx, c, req.input())
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respondCreated(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-announcement",
		Method:      http.MethodPut,
		Path:        "/announcements",
		Summary:     "Update announcement",
		RequestBody: jsonRequestBody[AnnouncementRequest](api),
		Errors:      writeErrors,
	}, func(ctx context.Context, input *IDQuery) (*dataOutput[domain.Announcement], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireID(input.ID); err != nil {
			return nil, err
		}
		var req AnnouncementRequest
		if err := decodeBody(ctx, &req); err != nil {
			return nil, err
		}
		a, err := h.e.UpdateAnnouncement(ctx, c, input.ID, req.input())
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respond(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-announcement",
		Method:      http.MethodDelete,
		Path:        "/announcements",
		Summary:     "Delete announcement",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *IDQuery) (*deletedOutput, error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireID(input.ID); err != nil {
			return nil, err
		}
		if err := h.e.DeleteAnnouncement(ctx, c, input.ID); err != nil {
			return nil, h.fail(ctx, err)
		}
		return respondDeleted(input.ID), nil
	})
}

func registerEvents(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List community events",
		Description: "Ordered by start time ascending. from/to bound startAt.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ListQuery
		WindowQuery
	}) (*pageOutput[domain.CommunityEvent], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := input.options()
		if err := input.apply(&opts); err != nil {
			return nil, err
		}
		p, err := h.e.ListEvents(ctx, c, opts)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respondPage(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-event",
		Method:      http.MethodPost,
		Path:        "/events",
		Summary:     "Create community event",
		RequestBody: jsonRequestBody[EventRequest](api),
		Errors:      writeErrors,
	}, func(ctx context.Context, _ *struct{}) (*dataOutput[domain.CommunityEvent], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var req EventRequest
		if err := decodeBody(ctx, &req); err != nil {
			return nil, err
		}
		ev, err := h.e.CreateEvent(ctx, c, req.input())
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respondCreated(ev), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-event",
		Method:      http.MethodPut,
		Path:        "/events",
		Summary:     "Update community event",
		RequestBody: jsonRequestBody[EventRequest](api),
		Errors:      writeErrors,
	}, func(ctx context.Context, input *IDQuery) (*dataOutput[domain.CommunityEvent], error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireID(input.ID); err != nil {
			return nil, err
		}
		var req EventRequest
		if err := decodeBody(ctx, &req); err != nil {
			return nil, err
		}
		ev, err := h.e.UpdateEvent(ctx, c, input.ID, req.input())
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return respond(ev), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-event",
		Method:      http.MethodDelete,
		Path:        "/events",
		Summary:     "Delete community event",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *IDQuery) (*deletedOutput, error) {
		c, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireID(input.ID); err != nil {
			return nil, err
		}
		if err := h.e.DeleteEvent(ctx, c, input.ID); err != nil {
			return nil, h.fail(ctx, err)
		}
		return respondDeleted(input.ID), nil
	})
}
