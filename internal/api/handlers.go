package api

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/youruser/cardvault/internal/cards"
	"github.com/youruser/cardvault/internal/collection"
	"github.com/youruser/cardvault/internal/decklist"
	imagepkg "github.com/youruser/cardvault/internal/image"
)

// maxImportBytes bounds a pasted decklist.
const maxImportBytes = 1 << 20

type addOneRequest struct {
	Card *cards.CardRef `json:"card"`
}

type addManyRequest struct {
	Cards []cards.CardRef `json:"cards"`
}

type collectionResponse struct {
	Collection cards.Collection `json:"collection"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// health
func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) scope(c *gin.Context) string {
	if s := strings.TrimSpace(c.GetHeader(ScopeHeader)); s != "" {
		return s
	}
	return h.opts.DefaultScope
}

// fetch returns the whole collection, optionally narrowed by q and min_count.
func (h *handler) fetch(c *gin.Context) {
	coll, err := h.svc.Fetch(c.Request.Context(), h.scope(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	q := c.Query("q")
	minCount := 0
	if s := c.Query("min_count"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			h.badRequest(c, "invalid min_count", err)
			return
		}
		minCount = v
	}
	if q != "" || minCount > 0 {
		coll = cards.Filter(coll, cards.FilterOptions{FreeWords: q, MinCount: minCount})
	}
	c.JSON(http.StatusOK, collectionResponse{Collection: coll})
}

func (h *handler) addOne(c *gin.Context) {
	var req addOneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}
	if req.Card == nil {
		h.badRequest(c, "invalid request body", errors.New("card is required"))
		return
	}
	h.respond(c)(h.svc.AddOne(c.Request.Context(), h.scope(c), *req.Card))
}

// removeOne takes the rest of the path as the id, so ids may contain "/".
func (h *handler) removeOne(c *gin.Context) {
	id := strings.TrimPrefix(c.Param("id"), "/")
	h.respond(c)(h.svc.RemoveOne(c.Request.Context(), h.scope(c), id))
}

func (h *handler) addMany(c *gin.Context) {
	var req addManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}
	h.respond(c)(h.svc.AddMany(c.Request.Context(), h.scope(c), req.Cards))
}

func (h *handler) clear(c *gin.Context) {
	h.respond(c)(h.svc.Clear(c.Request.Context(), h.scope(c)))
}

func (h *handler) importText(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes+1))
	if err != nil {
		h.badRequest(c, "failed to read body", err)
		return
	}
	if len(body) > maxImportBytes {
		h.badRequest(c, "decklist too large", errors.New("body exceeds 1 MiB"))
		return
	}
	h.respond(c)(h.svc.ImportText(c.Request.Context(), h.scope(c), string(body)))
}

func (h *handler) exportText(c *gin.Context) {
	text, err := h.svc.ExportText(c.Request.Context(), h.scope(c), c.Query("title"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.String(http.StatusOK, text)
}

// qr endpoint returns a PNG of a QR encoding the collection's decklist
func (h *handler) qr(c *gin.Context) {
	size := 400
	if sizeStr := c.Query("size"); sizeStr != "" {
		if v, err := strconv.Atoi(sizeStr); err == nil {
			size = v
		}
	}
	text, err := h.svc.ExportText(c.Request.Context(), h.scope(c), "")
	if err != nil {
		h.fail(c, err)
		return
	}
	b, err := imagepkg.GenerateQRPNG(text, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to render qr", Details: err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", b)
}

// sheetImage renders the collection as a grid of card artwork (best-effort)
// with a QR of the decklist in the corner.
func (h *handler) sheetImage(c *gin.Context) {
	ctx := c.Request.Context()
	scope := h.scope(c)
	coll, err := h.svc.Fetch(ctx, scope)
	if err != nil {
		h.fail(c, err)
		return
	}
	tiles := imagepkg.LoadSheetTiles(ctx, coll, imagepkg.SheetOptions{
		Limit:        h.opts.SheetMaxCards,
		Workers:      h.opts.SheetWorkers,
		Fetch:        h.opts.Fetch,
		AllowedHosts: h.opts.ImageHosts,
	}, h.logger)

	var qrImg image.Image
	if len(coll) > 0 {
		if q, err := imagepkg.GenerateQRImage(decklist.Format("", coll), 400); err == nil {
			qrImg = q
		} else {
			h.logger.Debug("sheet qr skipped", zap.String("scope", scope), zap.Error(err))
		}
	}
	out := imagepkg.ComposeCollectionSheet(tiles, qrImg)
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, out); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to encode image", Details: err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *handler) respond(c *gin.Context) func(cards.Collection, error) {
	return func(coll cards.Collection, err error) {
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, collectionResponse{Collection: coll})
	}
}

func (h *handler) badRequest(c *gin.Context, msg string, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg, Details: err.Error()})
}

// fail maps service errors onto HTTP statuses.
func (h *handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, collection.ErrValidation):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failure", Details: err.Error()})
	case collection.IsTimeout(err):
		h.logger.Warn("request timed out", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusGatewayTimeout, errorResponse{Error: "store timeout", Details: err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "store unavailable", Details: err.Error()})
	}
}
