package revalidation

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adampresley/photogallery/pkg/services"
	"github.com/stretchr/testify/assert"
)

func TestRevalidate(t *testing.T) {
	controller := NewRevalidationController(RevalidationControllerConfig{
		RevalidationService: services.NewRevalidationService(services.RevalidationServiceConfig{Token: "reval"}),
	})

	r := httptest.NewRequest(http.MethodPost, "/revalidate?path=trips", nil)
	r.Header.Set("Authorization", "Bearer reval")
	w := httptest.NewRecorder()

	controller.Revalidate(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"revalidated":true,"path":"/trips"}`, w.Body.String())

	r = httptest.NewRequest(http.MethodPost, "/revalidate", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()

	controller.Revalidate(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
}
