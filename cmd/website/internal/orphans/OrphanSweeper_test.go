package orphans

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adampresley/photogallery/pkg/models"
	"github.com/adampresley/photogallery/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	services.CatalogServicer
	referenced map[string]struct{}
}

func (f fakeCatalog) ReferencedImageIDs(ctx context.Context) (map[string]struct{}, error) {
	return f.referenced, nil
}

type fakeProvider struct {
	mu      sync.Mutex
	pages   map[string]services.ImagePage
	deleted []string
}

func (f *fakeProvider) Configured() bool {
	return true
}

func (f *fakeProvider) CreateDirectUpload(ctx context.Context, filename string) (models.UploadTarget, error) {
	return models.UploadTarget{}, nil
}

func (f *fakeProvider) ListImages(ctx context.Context, continuationToken string) (services.ImagePage, error) {
	return f.pages[continuationToken], nil
}

func (f *fakeProvider) DeleteImage(ctx context.Context, imageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, imageID)
	return nil
}

var (
	now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
)

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		pages: map[string]services.ImagePage{
			"": {
				Images: []services.ProviderImage{
					{ID: "kept", Uploaded: now.Add(-72 * time.Hour)},
					{ID: "old-orphan", Uploaded: now.Add(-72 * time.Hour)},
				},
				ContinuationToken: "2",
			},
			"2": {
				Images: []services.ProviderImage{
					{ID: "fresh-orphan", Uploaded: now.Add(-time.Hour)},
					{ID: "hidden", Uploaded: now.Add(-72 * time.Hour)},
				},
			},
		},
	}
}

func newSweeper(mode string, provider *fakeProvider) OrphanSweeperService {
	return NewOrphanSweeperService(OrphanSweeperConfig{
		CatalogService: fakeCatalog{referenced: map[string]struct{}{
			"kept":   {},
			"hidden": {},
		}},
		Provider:        provider,
		Mode:            mode,
		GracePeriod:     24 * time.Hour,
		MaxSweepWorkers: 2,
		Now:             func() time.Time { return now },
	})
}

func TestSweepReportOnly(t *testing.T) {
	provider := newFakeProvider()

	result, err := newSweeper(ModeReport, provider).Sweep()
	require.NoError(t, err)

	assert.Equal(t, 4, result.Scanned)
	assert.Equal(t, []string{"old-orphan"}, result.Orphaned)
	assert.Zero(t, result.Deleted)
	assert.Empty(t, provider.deleted)
}

func TestSweepDelete(t *testing.T) {
	provider := newFakeProvider()

	result, err := newSweeper(ModeDelete, provider).Sweep()
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, []string{"old-orphan"}, provider.deleted)
}

func TestSweepOff(t *testing.T) {
	provider := newFakeProvider()

	result, err := newSweeper(ModeOff, provider).Sweep()
	require.NoError(t, err)

	assert.Zero(t, result.Scanned)
	assert.Empty(t, provider.deleted)
}
