package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tnm3allim/marketplace/internal/domain/booking"
	"github.com/tnm3allim/marketplace/internal/http/handlers"
)

type bindErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			JSON   string                `json:"json"`
			Form   string                `json:"form"`
			Field  string                `json:"field"`
			Fields []handlers.FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func bookingRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/book", func(ctx *gin.Context) {
		var req booking.CreateBookingRequest
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusCreated)
	})

	return r
}

func decodeBindError(t *testing.T, w *httptest.ResponseRecorder) bindErrorResponse {
	t.Helper()

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}

	if resp.Error.Code != "invalid_request" {
		t.Fatalf("unexpected code: %s", resp.Error.Code)
	}

	return resp
}

func TestBindJSON_ValidationErrorsUseJSONFieldNames(t *testing.T) {
	r := bookingRouter()

	req := httptest.NewRequest(http.MethodPost, "/book", bytes.NewBufferString(`{"date":"14/10/2026"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	resp := decodeBindError(t, w)

	wantRules := map[string]string{
		"artisanId": "required",
		"date":      "datetime",
		"time":      "required",
	}

	got := make(map[string]string, len(resp.Error.Details.Fields))
	for _, fe := range resp.Error.Details.Fields {
		got[fe.Field] = fe.Rule
	}

	for field, rule := range wantRules {
		if got[field] != rule {
			t.Fatalf("field %q: got rule %q, want %q (all=%v)", field, got[field], rule, got)
		}
	}
}

func TestBindJSON_TypeMismatchNamesField(t *testing.T) {
	r := bookingRouter()

	body := `{"artisanId":"seven","date":"2026-10-14","time":"09:30"}`
	req := httptest.NewRequest(http.MethodPost, "/book", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	resp := decodeBindError(t, w)

	if resp.Error.Details.JSON != "invalid_json_type" {
		t.Fatalf("got json detail %q, want invalid_json_type", resp.Error.Details.JSON)
	}
	if resp.Error.Details.Field != "artisanId" {
		t.Fatalf("got field %q, want artisanId", resp.Error.Details.Field)
	}
}

func TestBindJSON_Syntax(t *testing.T) {
	r := bookingRouter()

	req := httptest.NewRequest(http.MethodPost, "/book", bytes.NewBufferString(`{"artisanId":}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	resp := decodeBindError(t, w)

	if resp.Error.Details.JSON != "invalid_json_syntax" {
		t.Fatalf("got json detail %q, want invalid_json_syntax", resp.Error.Details.JSON)
	}
}

type rateForm struct {
	Experience int    `form:"experience" binding:"min=0"`
	Profession string `form:"profession" binding:"omitempty,max=10"`
}

func TestBindForm(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/form", func(ctx *gin.Context) {
		var req rateForm
		if !handlers.BindForm(ctx, &req) {
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"experience": req.Experience})
	})

	post := func(vals url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(vals.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("valid", func(t *testing.T) {
		w := post(url.Values{"experience": {"4"}})
		if w.Code != http.StatusOK {
			t.Fatalf("got %d body=%s", w.Code, w.Body.String())
		}
	})

	t.Run("form tag names the field", func(t *testing.T) {
		resp := decodeBindError(t, post(url.Values{"experience": {"-1"}}))

		if len(resp.Error.Details.Fields) != 1 {
			t.Fatalf("expected one field error, got %+v", resp.Error.Details.Fields)
		}
		if fe := resp.Error.Details.Fields[0]; fe.Field != "experience" || fe.Rule != "min" {
			t.Fatalf("unexpected field error %+v", fe)
		}
	})

	t.Run("non numeric", func(t *testing.T) {
		resp := decodeBindError(t, post(url.Values{"experience": {"lots"}}))

		if resp.Error.Details.Form != "invalid_form_type" {
			t.Fatalf("got form detail %q", resp.Error.Details.Form)
		}
	})
}
