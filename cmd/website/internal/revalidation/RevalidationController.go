package revalidation

import (
	"net/http"

	"github.com/adampresley/photogallery/cmd/website/internal/apiresponses"
	"github.com/adampresley/photogallery/pkg/services"
)

type RevalidationHandlers interface {
	Revalidate(w http.ResponseWriter, r *http.Request)
}

type RevalidationControllerConfig struct {
	RevalidationService services.RevalidationServicer
}

type RevalidationController struct {
	revalidationService services.RevalidationServicer
}

func NewRevalidationController(config RevalidationControllerConfig) RevalidationController {
	return RevalidationController{
		revalidationService: config.RevalidationService,
	}
}

/*
POST /revalidate?path=/some/path
*/
func (c RevalidationController) Revalidate(w http.ResponseWriter, r *http.Request) {
	result, err := c.revalidationService.Acknowledge(r.Header.Get("Authorization"), r.URL.Query().Get("path"))

	if err != nil {
		apiresponses.WriteError(w, r, err)
		return
	}

	apiresponses.WriteJSON(w, http.StatusOK, result)
}
