package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learningcloud/backend/core/notification"
)

type notificationApi struct {
	svc  *notification.Service
	auth *jwtAuth
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *jwtAuth, opts *Options) {
	api := notificationApi{svc: opts.NotificationSvc, auth: auth}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.GET("/unread-count", api.unreadCount)
	ng.GET("/:id", api.get)
	ng.POST("/read-all", api.markAllRead)
	ng.POST("/:id/read", api.markRead)
}

// Handlers

func (api *notificationApi) query(ctx echo.Context) error {
	userID, err := api.userID(ctx)
	if err != nil {
		return err
	}

	var filter notification.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	page := bindPagination(ctx)

	notifs, total, err := api.svc.Filter(ctx.Request().Context(), userID, filter, page)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, paginated(page, total, notifs))
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	userID, err := api.userID(ctx)
	if err != nil {
		return err
	}
	count, err := api.svc.UnreadCount(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"unread_count": count})
}

func (api *notificationApi) get(ctx echo.Context) error {
	userID, err := api.userID(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	notif, err := api.svc.GetByID(ctx.Request().Context(), userID, id)
	if err != nil {
		return errors.Wrap(err, "getting notification")
	}
	return ctx.JSON(http.StatusOK, notif)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	userID, err := api.userID(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	if err = api.svc.MarkRead(ctx.Request().Context(), userID, id); err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Notification marked read."})
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	userID, err := api.userID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.MarkAllRead(ctx.Request().Context(), userID); err != nil {
		return errors.Wrap(err, "marking all notifications read")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "All notifications marked read."})
}

func (api *notificationApi) userID(ctx echo.Context) (int, error) {
	claims, err := api.auth.getContextClaims(ctx)
	if err != nil {
		return 0, err
	}
	return claims.UserID(), nil
}
