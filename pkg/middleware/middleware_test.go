package middleware

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printflow/job-lifecycle/pkg/errors"
	"github.com/printflow/job-lifecycle/pkg/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() *gin.Engine {
	router := gin.New()
	Setup(router, DefaultConfig("test", slog.Default()))
	return router
}

type createRequest struct {
	JobCardID string `json:"jobCardId" binding:"required,job_card_id"`
	Priority  string `json:"priority" binding:"priority"`
}

func TestSetup_PropagatesIDsAndActor(t *testing.T) {
	router := newTestRouter()

	var gotActorID, gotActorRole, gotCorrelation string
	router.GET("/ping", func(c *gin.Context) {
		gotActorID, gotActorRole = logging.ActorFromContext(c.Request.Context())
		gotCorrelation = GetCorrelationID(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderCorrelationID, "corr-1")
	req.Header.Set(HeaderActorID, "u-7")
	req.Header.Set(HeaderActorRole, "prepress")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "corr-1", w.Header().Get(HeaderCorrelationID))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	assert.Equal(t, "corr-1", gotCorrelation)
	assert.Equal(t, "u-7", gotActorID)
	assert.Equal(t, "prepress", gotActorRole)
}

func TestErrorHandler_MapsAppErrors(t *testing.T) {
	router := newTestRouter()
	router.GET("/stale", WrapHandler(func(c *gin.Context) error {
		return errors.ErrStaleAssignment("u-2", "u-1")
	}))
	router.GET("/boom", WrapHandler(func(c *gin.Context) error {
		return stderrors.New("disk on fire")
	}))

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/stale", http.StatusConflict, errors.CodeStaleAssignment},
		{"/boom", http.StatusInternalServerError, errors.CodeInternalError},
		{"/missing", http.StatusNotFound, "ROUTE_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.status, w.Code)
			var body APIErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.path, body.Path)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestBindAndValidate(t *testing.T) {
	router := newTestRouter()
	router.POST("/jobs", func(c *gin.Context) {
		var req createRequest
		if appErr := BindAndValidate(c, &req); appErr != nil {
			AbortWithAppError(c, appErr)
			return
		}
		c.JSON(http.StatusCreated, req)
	})

	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"valid", `{"jobCardId":"JC-2024-001","priority":"high"}`, http.StatusCreated, ""},
		{"missing card", `{"priority":"HIGH"}`, http.StatusBadRequest, "jobCardId"},
		{"bad priority", `{"jobCardId":"JC-1","priority":"urgent"}`, http.StatusBadRequest, "priority"},
		{"malformed", `{`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code)
			if tt.field != "" {
				var body APIErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, errors.CodeValidationError, body.Code)
				assert.Contains(t, body.Details, tt.field)
			}
		})
	}
}

func TestContentType_RejectsNonJSON(t *testing.T) {
	router := newTestRouter()
	router.POST("/jobs", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRegisterValidator(t *testing.T) {
	require.NoError(t, RegisterValidator("even_len", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String())%2 == 0
	}, "must have an even length"))

	type payload struct {
		Name string `json:"name" validate:"even_len"`
	}

	appErr := ValidateStruct(payload{Name: "abc"})
	require.NotNil(t, appErr)
	assert.Equal(t, "must have an even length", appErr.Details["name"])
	assert.Nil(t, ValidateStruct(payload{Name: "ab"}))
}
