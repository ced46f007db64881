package orphans

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/adampresley/photogallery/pkg/services"
	"github.com/alitto/pond/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ModeOff    = "off"
	ModeReport = "report"
	ModeDelete = "delete"
)

var (
	orphanedImages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gallery_orphaned_images",
		Help: "Provider images older than the grace period that no photo record references, as of the last sweep.",
	})

	orphansDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gallery_orphaned_images_deleted_total",
		Help: "Orphaned provider images deleted by the sweep.",
	})
)

type OrphanSweeper interface {
	Sweep() (SweepResult, error)
}

type OrphanSweeperConfig struct {
	CatalogService  services.CatalogServicer
	Provider        services.ImageProviderServicer
	Mode            string
	GracePeriod     time.Duration
	MaxSweepWorkers int
	Now             func() time.Time
	ShutdownCtx     context.Context
}

type SweepResult struct {
	Scanned  int
	Orphaned []string
	Deleted  int
}

/*
OrphanSweeperService reconciles the image provider against the catalog.
An image is an orphan when no photo record, published or hidden, references
it and it was uploaded before the grace period. In report mode orphans are
only logged. In delete mode they are removed from the provider.
*/
type OrphanSweeperService struct {
	catalogService  services.CatalogServicer
	provider        services.ImageProviderServicer
	mode            string
	gracePeriod     time.Duration
	maxSweepWorkers int
	now             func() time.Time
	shutdownCtx     context.Context
}

func NewOrphanSweeperService(config OrphanSweeperConfig) OrphanSweeperService {
	result := OrphanSweeperService{
		catalogService:  config.CatalogService,
		provider:        config.Provider,
		mode:            config.Mode,
		gracePeriod:     config.GracePeriod,
		maxSweepWorkers: config.MaxSweepWorkers,
		now:             config.Now,
		shutdownCtx:     config.ShutdownCtx,
	}

	if result.now == nil {
		result.now = time.Now
	}

	if result.shutdownCtx == nil {
		result.shutdownCtx = context.Background()
	}

	if result.maxSweepWorkers <= 0 {
		result.maxSweepWorkers = 1
	}

	return result
}

func (s OrphanSweeperService) Sweep() (SweepResult, error) {
	var (
		err        error
		referenced map[string]struct{}
		page       services.ImagePage
		result     SweepResult
	)

	if s.mode != ModeReport && s.mode != ModeDelete {
		return result, nil
	}

	slog.Info("starting orphan sweep...", "mode", s.mode)

	if referenced, err = s.catalogService.ReferencedImageIDs(s.shutdownCtx); err != nil {
		return result, fmt.Errorf("error loading referenced image IDs: %w", err)
	}

	cutoff := s.now().Add(-s.gracePeriod)
	token := ""

	/*
	 * Page through every provider image, keeping those nothing points at.
	 */
	for {
		if page, err = s.provider.ListImages(s.shutdownCtx, token); err != nil {
			return result, fmt.Errorf("error listing provider images: %w", err)
		}

		for _, image := range page.Images {
			result.Scanned++

			if _, ok := referenced[image.ID]; ok {
				continue
			}

			if image.Uploaded.IsZero() || image.Uploaded.After(cutoff) {
				continue
			}

			result.Orphaned = append(result.Orphaned, image.ID)
		}

		if page.ContinuationToken == "" || len(page.Images) == 0 {
			break
		}

		token = page.ContinuationToken
	}

	orphanedImages.Set(float64(len(result.Orphaned)))
	slog.Info("orphan sweep scanned provider images", "scanned", result.Scanned, "orphaned", len(result.Orphaned))

	if s.mode == ModeReport {
		for _, imageID := range result.Orphaned {
			slog.Warn("orphaned provider image", "imageID", imageID)
		}

		return result, nil
	}

	var deleted atomic.Int64
	pool := pond.NewPool(s.maxSweepWorkers, pond.WithContext(s.shutdownCtx))

	for _, imageID := range result.Orphaned {
		pool.Submit(func() {
			if err := s.provider.DeleteImage(s.shutdownCtx, imageID); err != nil {
				slog.Error("error deleting orphaned image", "imageID", imageID, "error", err)
				return
			}

			deleted.Add(1)
			orphansDeletedTotal.Inc()
			slog.Info("deleted orphaned image", "imageID", imageID)
		})
	}

	_ = pool.Stop().Wait()

	result.Deleted = int(deleted.Load())
	return result, nil
}
