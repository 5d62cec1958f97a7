package imagepkg

import (
	"context"
	"fmt"
	"image"
	"net/netip"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/youruser/cardvault/internal/cards"
	"github.com/youruser/cardvault/internal/util"
)

// ImageURLAttr is the card attribute read for sheet artwork.
const ImageURLAttr = "image_url"

// Fetcher loads one image.
type Fetcher func(ctx context.Context, url string) (image.Image, error)

// SheetOptions controls artwork loading for a collection sheet.
type SheetOptions struct {
	// Limit is the number of entries drawn; values below 1 draw none.
	Limit   int
	Workers int
	// Fetch defaults to DownloadImage.
	Fetch Fetcher
	// AllowedHosts, when set, restricts artwork to these hosts and their
	// subdomains.
	AllowedHosts []string
}

// CheckImageURL rejects artwork URLs the server should not fetch:
// non-HTTP schemes, literal non-public addresses and hosts outside allowed.
func CheckImageURL(raw string, allowed []string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("missing host")
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("host %q is not public", host)
	}
	if addr, err := netip.ParseAddr(host); err == nil && !util.IsPublicAddr(addr) {
		return fmt.Errorf("host %q is not public", host)
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" && (host == a || strings.HasSuffix(host, "."+a)) {
			return nil
		}
	}
	return fmt.Errorf("host %q is not allowed", host)
}

// LoadSheetTiles fetches artwork for at most opts.Limit entries, parallel
// bounded by opts.Workers. Failed, refused or missing artwork leaves a nil
// Image; it never fails the sheet.
func LoadSheetTiles(ctx context.Context, coll cards.Collection, opts SheetOptions, logger *zap.Logger) []SheetCard {
	fetch := opts.Fetch
	if fetch == nil {
		fetch = DownloadImage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := opts.Limit
	if limit < 0 {
		limit = 0
	}
	if len(coll) > limit {
		coll = coll[:limit]
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	tiles := make([]SheetCard, len(coll))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range coll {
		i, e := i, e
		tiles[i].Count = e.Count
		src := e.Card.Attr(ImageURLAttr)
		if src == "" {
			continue
		}
		if err := CheckImageURL(src, opts.AllowedHosts); err != nil {
			logger.Debug("card image refused", zap.String("card_id", e.Card.ID), zap.Error(err))
			continue
		}
		g.Go(func() error {
			img, err := fetch(gctx, src)
			if err != nil {
				logger.Debug("card image download failed", zap.String("card_id", e.Card.ID), zap.Error(err))
				return nil
			}
			tiles[i].Image = img
			return nil
		})
	}
	_ = g.Wait()
	return tiles
}
