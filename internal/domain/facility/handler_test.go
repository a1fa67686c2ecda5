package facility

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestHandler_Update_UnknownFacility(t *testing.T) {
	h := NewHandler(NewService(&mockRepo{}))
	e := echo.New()

	body := `{"name":"CHU Ibn Sina"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.Update(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown facility, got %v", err)
	}
}

func TestHandler_Update_Existing(t *testing.T) {
	repo := &mockRepo{facilities: []*Facility{
		{ID: uuid.New(), Name: "CS Agdal", Type: TypeClinic},
	}}
	h := NewHandler(NewService(repo))
	e := echo.New()

	body := `{"name":"CS Agdal Renamed"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(repo.facilities[0].ID.String())

	if err := h.Update(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if repo.facilities[0].Name != "CS Agdal Renamed" {
		t.Errorf("expected name updated, got %s", repo.facilities[0].Name)
	}
}
