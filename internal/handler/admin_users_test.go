package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMemberCtx builds an echo context with the :id path param set, the way
// the admin routes deliver it.
func newMemberCtx(t *testing.T, method, id, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func TestAdminUserGetRejectsBadID(t *testing.T) {
	h := &AdminUserHandler{}

	c, rec := newMemberCtx(t, http.MethodGet, "not-a-number", "")
	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid user id")
}

func TestAdminUserResetPasswordRejectsBadInput(t *testing.T) {
	h := &AdminUserHandler{}

	c, rec := newMemberCtx(t, http.MethodPatch, "0", `{"new_password":"x"}`)
	require.NoError(t, h.ResetPassword(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newMemberCtx(t, http.MethodPatch, "3", `{}`)
	require.NoError(t, h.ResetPassword(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "new_password required")
}

func TestAdminUserDeleteRejectsBadID(t *testing.T) {
	h := &AdminUserHandler{}

	c, rec := newMemberCtx(t, http.MethodDelete, "abc", "")
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
