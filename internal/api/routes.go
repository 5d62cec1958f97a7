package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/youruser/cardvault/internal/collection"
	imagepkg "github.com/youruser/cardvault/internal/image"
)

// ScopeHeader selects the collection scope; the default scope applies
// when it is absent.
const ScopeHeader = "X-Collection-Scope"

const defaultSheetMaxCards = 50

// Options configures the HTTP binding.
type Options struct {
	DefaultScope  string
	SheetMaxCards int
	SheetWorkers  int
	// Fetch loads card artwork for sheets. Nil downloads over HTTP.
	Fetch imagepkg.Fetcher
	// ImageHosts restricts sheet artwork to these hosts when non-empty.
	ImageHosts []string
}

type handler struct {
	svc    *collection.Service
	logger *zap.Logger
	opts   Options
}

// NewRouter builds a gin engine with middleware and all routes.
func NewRouter(svc *collection.Service, logger *zap.Logger, opts Options) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(requestID(), accessLog(logger), gin.Recovery())
	RegisterRoutes(r, svc, logger, opts)
	return r
}

func RegisterRoutes(r *gin.Engine, svc *collection.Service, logger *zap.Logger, opts Options) {
	if opts.DefaultScope == "" {
		opts.DefaultScope = "default"
	}
	if opts.SheetMaxCards < 1 {
		opts.SheetMaxCards = defaultSheetMaxCards
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{svc: svc, logger: logger, opts: opts}

	api := r.Group("/api")
	{
		api.GET("/health", health)

		coll := api.Group("/collection")
		coll.GET("", h.fetch)
		coll.DELETE("", h.clear)
		coll.POST("/cards", h.addOne)
		coll.DELETE("/cards/*id", h.removeOne)
		coll.POST("/batch", h.addMany)
		coll.POST("/import", h.importText)
		coll.GET("/export", h.exportText)
		coll.GET("/qr", h.qr)
		coll.GET("/image", h.sheetImage)
	}
}
