package api

import (
	"encoding/base64"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/angelluvianoolivares/SmartTaskManager/domain"
)

const requestMaxSize = 1 << 20

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, engine Engine, extractor Extractor, auth Authenticator, deduper Deduper, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}

	g := e.Group("/api", requireAuth(auth))
	g.GET("/tasks", getTasks(engine, logger))
	g.POST("/tasks", postTask(engine, deduper, logger))
	g.PATCH("/tasks/:id", patchTask(engine))
	g.DELETE("/tasks/:id", deleteTask(engine))
	g.POST("/tasks/:id/toggle", toggleTask(engine))
	g.GET("/folders", getFolders(engine))
	g.POST("/folders", postFolder(engine))
	g.DELETE("/folders/:name", deleteFolder(engine))
	g.POST("/drafts", postDraft(extractor))

	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
}

func requireAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
			if err != nil {
				return c.String(http.StatusUnauthorized, err.Error())
			}
			c.Set("userID", userID)
			return next(c)
		}
	}
}

func writeError(c echo.Context, err error) error {
	switch {
	case domain.IsValidation(err):
		return c.String(http.StatusBadRequest, err.Error())
	case domain.IsNotFound(err):
		return c.String(http.StatusNotFound, err.Error())
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

func getTasks(engine Engine, logger *log.Logger) echo.HandlerFunc {
	tracer := otel.Tracer("smart-task-manager/api")
	return func(c echo.Context) (err error) {
		metrics := newRequestMetrics(logger, "/api/tasks")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		ctx, span := tracer.Start(c.Request().Context(), "tasks.list")
		defer span.End()

		folder := c.QueryParam("folder")
		if folder == "" {
			folder = domain.DefaultFolder
		}
		span.SetAttributes(attribute.String("tasks.folder", folder))

		fetchStart := time.Now()
		tasks, fetchErr := engine.ListTasks(ctx, folder)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			err = writeError(c, fetchErr)
			return err
		}
		metrics.SetTasksReturned(len(tasks))
		span.SetAttributes(attribute.Int("tasks.returned", len(tasks)))

		err = c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
		return err
	}
}

func postTask(engine Engine, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var fields domain.TaskFields
		if err := decodeBody(c, &fields); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		key := c.Request().Header.Get("Idempotency-Key")
		if key == "" {
			key = uuid.NewString()
		}
		if deduper != nil {
			added, err := deduper.Add(ctx, key)
			if err != nil {
				logger.WithError(err).Warn("idempotency check unavailable, proceeding")
			} else if !added {
				return c.String(http.StatusConflict, "duplicate request")
			}
		}

		task, err := engine.CreateTask(ctx, fields)
		if err != nil {
			if deduper != nil {
				if rerr := deduper.Remove(ctx, key); rerr != nil {
					logger.WithError(rerr).WithField("key", key).Error("idempotency rollback failed")
				}
			}
			return writeError(c, err)
		}

		c.Response().Header().Set("Idempotency-Key", key)
		return c.JSON(http.StatusCreated, task)
	}
}

func patchTask(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		var patch domain.TaskPatch
		if err := decodeBody(c, &patch); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		task, err := engine.UpdateTask(c.Request().Context(), c.Param("id"), patch)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := engine.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func toggleTask(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		task, err := engine.ToggleCompletion(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		if task == nil {
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(http.StatusOK, task)
	}
}

type foldersResponse struct {
	Folders []string `json:"folders"`
}

func getFolders(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		folders, err := engine.Folders(c.Request().Context())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, foldersResponse{Folders: folders})
	}
}

type folderRequest struct {
	Name string `json:"name"`
}

func postFolder(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req folderRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := engine.CreateFolder(c.Request().Context(), req.Name); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusCreated)
	}
}

func deleteFolder(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := engine.DeleteFolder(c.Request().Context(), c.Param("name")); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type draftRequest struct {
	Image    string `json:"image"`
	Language string `json:"language,omitempty"`
	Folder   string `json:"folder,omitempty"`
}

// postDraft extracts a provisional task draft from a photographed note. The
// draft is returned to the caller for confirmation, never committed here.
func postDraft(extractor Extractor) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req draftRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		image, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil || len(image) == 0 {
			return c.String(http.StatusBadRequest, "image must be base64 encoded")
		}
		folder := req.Folder
		if folder == "" {
			folder = domain.DefaultFolder
		}
		draft := extractor.ExtractTask(c.Request().Context(), image, req.Language, folder)
		return c.JSON(http.StatusOK, draft)
	}
}
