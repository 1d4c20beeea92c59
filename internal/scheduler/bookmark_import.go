package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/metrics"
	"github.com/MrSnakeDoc/stash/internal/service"
	"github.com/MrSnakeDoc/stash/internal/sources/homepage"
)

const JobImport = "import"

// BookmarkImporter periodically imports a Homepage bookmarks.yaml for one user.
// Imports only add: bookmarks removed from the file are kept.
type BookmarkImporter struct {
	loader        *homepage.Loader
	service       *service.BookmarkService
	user          string
	logger        logger.Logger
	metrics       *metrics.Metrics
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
}

func NewBookmarkImporter(
	bookmarkFile string,
	user string,
	svc *service.BookmarkService,
	log logger.Logger,
	m *metrics.Metrics,
	interval time.Duration,
	manualTrigger chan struct{},
) *BookmarkImporter {
	return &BookmarkImporter{
		loader:        homepage.NewLoader(bookmarkFile),
		service:       svc,
		user:          user,
		logger:        log,
		metrics:       m,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start imports once, then on every interval and manual trigger.
func (bi *BookmarkImporter) Start(ctx context.Context) error {
	if _, err := bi.Import(ctx); err != nil {
		return fmt.Errorf("initial bookmark import failed: %w", err)
	}

	go loop(ctx, bi.interval, bi.manualTrigger, bi.stopCh, bi.logger, JobImport, func(ctx context.Context) error {
		_, err := bi.Import(ctx)
		return err
	})
	return nil
}

func (bi *BookmarkImporter) Stop() {
	bi.stopOnce.Do(func() { close(bi.stopCh) })
}

// Import loads the file and adds its bookmarks and tags to the user.
func (bi *BookmarkImporter) Import(ctx context.Context) (result service.ImportResult, err error) {
	defer func() { bi.metrics.JobRun(JobImport, err) }()

	bi.logger.Info("importing bookmarks",
		logger.String("file", bi.loader.Path()),
		logger.String("user", bi.user))

	config, err := bi.loader.Load()
	if err != nil {
		return result, fmt.Errorf("failed to load bookmarks: %w", err)
	}

	items, err := homepage.MapBookmarks(config)
	if err != nil {
		return result, fmt.Errorf("failed to map bookmarks: %w", err)
	}

	result, err = bi.service.ImportBookmarks(ctx, bi.user, items)
	if err != nil {
		return result, fmt.Errorf("failed to import bookmarks: %w", err)
	}

	return result, nil
}
