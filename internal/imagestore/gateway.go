// Package imagestore uploads product images to a remote asset host and
// removes them again by the URL the host handed out.
package imagestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrUnrecognizedURL is returned by Delete when no asset id can be derived
// from the reference URL.
var ErrUnrecognizedURL = errors.New("imagestore: unrecognized asset URL")

// Gateway is a remote asset host.
type Gateway interface {
	// Upload stores data and returns the host-assigned reference URL.
	Upload(ctx context.Context, data []byte, mediaType string) (string, error)
	// Delete removes the asset behind a URL previously returned by Upload.
	Delete(ctx context.Context, ref string) error
}

// DataURI encodes data as a base64 data URI.
func DataURI(data []byte, mediaType string) string {
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// AssetID derives the host asset id from a reference URL: the final path
// segment with any extension stripped. It only works for URL shapes where the
// asset id is the file name, which holds for both supported hosts.
func AssetID(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnrecognizedURL, err)
	}
	p := strings.TrimSuffix(u.Path, "/")
	if p == "" {
		return "", fmt.Errorf("%w: %q has no path", ErrUnrecognizedURL, ref)
	}
	base := path.Base(p)
	id := strings.TrimSuffix(base, path.Ext(base))
	if id == "" || id == "." || id == "/" {
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedURL, ref)
	}
	return id, nil
}

// scoped joins folder and id the way both hosts name objects.
func scoped(folder, id string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return id
	}
	return folder + "/" + id
}
