package imagepkg

import (
	"bytes"
	"context"
	"image"

	"github.com/disintegration/imaging"

	"github.com/youruser/cardvault/internal/util"
)

// DownloadImage downloads an image from URL and returns image.Image (decoded).
func DownloadImage(ctx context.Context, url string) (image.Image, error) {
	body, err := util.GetBytes(ctx, url)
	if err != nil {
		return nil, err
	}
	return imaging.Decode(bytes.NewReader(body))
}
