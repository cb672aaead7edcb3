package wix

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-kit/kit/log/level"
	"github.com/kolide/constructor/pkg/contexts/ctxlog"
	"github.com/mholt/archiver/v3"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// Unpack extracts each archive from downloadDir into
// `unpackRoot/<folder>`, for heat to harvest. Archives whose folder
// already exists are skipped, so an interrupted build can be rerun.
func Unpack(ctx context.Context, downloadDir, unpackRoot string, archives []Archive) error {
	ctx, span := trace.StartSpan(ctx, "wix.Unpack")
	defer span.End()

	logger := ctxlog.FromContext(ctx)

	if err := os.MkdirAll(unpackRoot, 0755); err != nil {
		return errors.Wrapf(err, "mkdir %s", unpackRoot)
	}

	for _, a := range archives {
		dest := filepath.Join(unpackRoot, a.Folder())

		if _, err := os.Stat(dest); err == nil {
			level.Debug(logger).Log("msg", "already unpacked", "archive", a.Filename)
			continue
		}

		// Extract beside the destination, and rename into place, so a
		// failed extraction is not mistaken for a finished one.
		partial := dest + ".partial"
		if err := os.RemoveAll(partial); err != nil {
			return errors.Wrapf(err, "removing stale %s", partial)
		}

		tbz := archiver.NewTarBz2()
		tbz.MkdirAll = true
		tbz.OverwriteExisting = false

		src := filepath.Join(downloadDir, a.Filename)
		level.Debug(logger).Log("msg", "unpacking", "archive", src, "dest", dest)
		if err := tbz.Unarchive(src, partial); err != nil {
			return errors.Wrapf(err, "unpacking %s", src)
		}

		if err := os.Rename(partial, dest); err != nil {
			return errors.Wrapf(err, "renaming %s", partial)
		}
	}

	return nil
}
