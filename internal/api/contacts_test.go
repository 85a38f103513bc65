package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"whatsapp-dispatch/internal/models"
	"whatsapp-dispatch/internal/store"
)

func jsonBody(t *testing.T, body interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(data)
}

func newContactRouter(st *store.Memory) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewContactHandler(st)

	r := gin.New()
	r.POST("/api/contacts", handler.CreateContact)
	r.POST("/api/contacts/import", handler.ImportContacts)
	r.POST("/api/contacts/:phone/opt-out", handler.OptOut)
	r.POST("/api/contacts/:phone/tags", handler.AddTag)
	r.DELETE("/api/contacts/:phone/tags", handler.RemoveTag)
	return r
}

func TestCreateContactCanonicalizesPhone(t *testing.T) {
	st := store.NewMemory()
	r := newContactRouter(st)

	w := postJSON(t, r, "/api/contacts", gin.H{
		"phone_number": "+49 1555 1234",
		"name":         "Ana",
		"tags":         []string{"vip"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}

	contact, err := st.GetContact(context.Background(), "+4915551234")
	if err != nil {
		t.Fatalf("contact not stored under canonical phone: %v", err)
	}
	if contact.Name != "Ana" || contact.Tags != `["vip"]` {
		t.Errorf("contact = %+v", contact)
	}
	if contact.OptInStatus != models.OptedIn {
		t.Errorf("default opt-in status = %q", contact.OptInStatus)
	}
}

func TestCreateContactRejectsBadInput(t *testing.T) {
	r := newContactRouter(store.NewMemory())

	w := postJSON(t, r, "/api/contacts", gin.H{"phone_number": "abc!"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad phone code = %d", w.Code)
	}

	w = postJSON(t, r, "/api/contacts", gin.H{
		"phone_number":  "+4915551234",
		"custom_fields": "{not json",
	})
	if w.Code != http.StatusInternalServerError && w.Code != http.StatusBadRequest {
		t.Errorf("bad custom fields code = %d", w.Code)
	}
}

func TestImportContactsIsolatesBadRows(t *testing.T) {
	st := store.NewMemory()
	r := newContactRouter(st)

	w := postJSON(t, r, "/api/contacts/import", gin.H{
		"contacts": []gin.H{
			{"phone_number": "+491", "name": "One"},
			{"phone_number": "garbage!"},
			{"phone_number": "+492", "name": "Two"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}

	contacts, _ := st.FindContacts(context.Background(), store.ContactFilter{})
	if len(contacts) != 2 {
		t.Errorf("imported %d contacts, want 2", len(contacts))
	}
}

func TestOptOutStampsDate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SaveContact(ctx, &models.Contact{
		PhoneNumber: "+4915551234", OptInStatus: models.OptedIn, Tags: "[]",
	})
	r := newContactRouter(st)

	w := postJSON(t, r, "/api/contacts/+4915551234/opt-out", gin.H{})
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	contact, _ := st.GetContact(ctx, "+4915551234")
	if contact.OptInStatus != models.OptedOut || contact.OptOutDate == nil {
		t.Errorf("contact = %+v", contact)
	}
}

func TestTagLifecycle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.SaveContact(ctx, &models.Contact{PhoneNumber: "+491", Tags: "[]"})
	r := newContactRouter(st)

	w := postJSON(t, r, "/api/contacts/+491/tags", gin.H{"tag": "vip"})
	if w.Code != http.StatusOK {
		t.Fatalf("add tag code = %d", w.Code)
	}
	// Adding the same tag twice is a no-op.
	postJSON(t, r, "/api/contacts/+491/tags", gin.H{"tag": "vip"})

	contact, _ := st.GetContact(ctx, "+491")
	if contact.Tags != `["vip"]` {
		t.Errorf("tags = %s", contact.Tags)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/contacts/+491/tags",
		jsonBody(t, gin.H{"tag": "vip"}))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove tag code = %d", rec.Code)
	}

	contact, _ = st.GetContact(ctx, "+491")
	if contact.Tags != "[]" {
		t.Errorf("tags after removal = %s", contact.Tags)
	}
}
