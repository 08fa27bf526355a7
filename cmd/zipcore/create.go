package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zipcore/zipcore"
)

var (
	createMethod string

	cmdCreate = &cobra.Command{
		Use:   "create <archive.zip> <file>...",
		Short: "Create a ZIP archive from a list of files",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runCreate,
	}
)

func init() {
	cmdCreate.Flags().StringVar(&createMethod, "method", "deflate", "compression method: stored, deflate, zstd, xz, lzma")
}

func parseMethod(s string) (zipcore.CompressionMethod, error) {
	switch s {
	case "stored":
		return zipcore.MethodStored, nil
	case "deflate":
		return zipcore.MethodDeflate, nil
	case "zstd":
		return zipcore.MethodZstd, nil
	case "xz":
		return zipcore.MethodXZ, nil
	case "lzma":
		return zipcore.MethodLZMA, nil
	default:
		return 0, fmt.Errorf("zipcore: unknown compression method %q", s)
	}
}

func runCreate(cmd *cobra.Command, args []string) error {
	method, err := parseMethod(createMethod)
	if err != nil {
		return err
	}

	out, err := os.Create(args[0])
	if err != nil {
		return err
	}
	defer out.Close()

	aw := zipcore.NewArchiveWriter(out, zipcore.WithWriterLogger(log.WithField("cmd", "create")))

	for _, path := range args[1:] {
		if err := addFile(aw, path, method); err != nil {
			return err
		}
	}
	return aw.Close()
}

func addFile(aw *zipcore.ArchiveWriter, path string, method zipcore.CompressionMethod) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	entry := zipcore.NewEntryBuilder(zipcore.NewUTF8String(filepath.ToSlash(path)), method).
		Modified(zipcore.PackedDateTimeFromTime(info.ModTime())).
		Build()
	entry.UncompressedSize = uint64(len(content))

	ew, err := aw.CreateEntry(&entry, zipcore.StrategyWhole)
	if err != nil {
		return err
	}
	if _, err := ew.Write(content); err != nil {
		ew.Close()
		return err
	}
	return ew.Close()
}
