package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zipcore/zipcore"
)

var (
	extractDir string

	cmdExtract = &cobra.Command{
		Use:   "extract <archive.zip>",
		Short: "Extract a ZIP archive's entries to a directory, verifying CRC-32",
		Args:  cobra.ExactArgs(1),
		RunE:  runExtract,
	}
)

func init() {
	cmdExtract.Flags().StringVarP(&extractDir, "output", "o", ".", "destination directory")
}

func runExtract(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	ctx := context.Background()
	r, err := zipcore.OpenSeekableReader(ctx, zipcore.AdaptReaderAt(f), info.Size(), zipcore.WithLogger(log.WithField("cmd", "extract")))
	if err != nil {
		return err
	}

	for i := 0; i < r.Len(); i++ {
		se, err := r.Entry(i)
		if err != nil {
			return err
		}
		if err := extractOne(ctx, r, i, se); err != nil {
			return err
		}
	}
	return nil
}

func extractOne(ctx context.Context, r *zipcore.SeekableReader, i int, se *zipcore.StoredEntry) error {
	name := se.Name.String()
	dest := filepath.Join(extractDir, filepath.FromSlash(name))
	if !strings.HasPrefix(dest, filepath.Clean(extractDir)+string(os.PathSeparator)) && dest != filepath.Clean(extractDir) {
		return fmt.Errorf("zipcore: entry %q escapes output directory", name)
	}

	if se.IsDir() {
		return os.MkdirAll(dest, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	rc, err := r.OpenContext(ctx, i)
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, se.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	if !rc.Verified() {
		return zipcore.ErrCRC32Mismatch
	}
	return nil
}
