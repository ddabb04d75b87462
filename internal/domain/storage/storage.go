package storage

import "errors"

var ErrKeyNotFound = errors.New("key not found")

// Fixed keys of the terminal's local key/value storage.
const (
	KeyCart          = "pos_cart"
	KeySales         = "pos_sales"
	KeyScannerConfig = "barcode_scanner_config"
	DraftKeyPrefix   = "autosave_"
)

// Store holds serialized blobs under string keys.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}
