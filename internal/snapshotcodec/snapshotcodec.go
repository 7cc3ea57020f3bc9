// Package snapshotcodec compresses the opaque game-state snapshot bytes
// before they enter the blob-stream sender, and decompresses them once the
// blob-stream receiver has reassembled them, so the download transfer
// itself never has to know the bytes it's chunking are compressed.
package snapshotcodec

import (
	"github.com/klauspost/compress/zstd"

	"github.com/tickline/lockstep/internal/errs"
)

// Compress zstd-compresses snapshot at the default level, suitable for the
// serialized game state a DownloadGameStateRequest hands to the blob-stream
// sender.
func Compress(snapshot []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errs.Classify(errs.Critical, err)
	}
	defer enc.Close()
	return enc.EncodeAll(snapshot, make([]byte, 0, len(snapshot))), nil
}

// Decompress reverses Compress, run once a blob-stream transfer completes
// and before the result is handed to the game's Deserialize.
func Decompress(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errs.Classify(errs.Critical, err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, errs.Classify(errs.Critical, err)
	}
	return out, nil
}
