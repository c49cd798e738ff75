package media

import "errors"

var (
	// ErrAssetNotFound indicates the requested media asset does not exist.
	ErrAssetNotFound = errors.New("media asset not found")
	// ErrProviderUnavailable indicates the storage provider is not configured.
	ErrProviderUnavailable = errors.New("storage provider unavailable")
	// ErrAssetTooLarge indicates the payload exceeds the configured max upload size.
	ErrAssetTooLarge = errors.New("media asset too large")
	// ErrEmptyAsset indicates an upload with no bytes.
	ErrEmptyAsset = errors.New("media asset is empty")
	// ErrUnsupportedType indicates the payload is not an image.
	ErrUnsupportedType = errors.New("unsupported media type")
)
