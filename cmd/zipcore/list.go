package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zipcore/zipcore"
)

var cmdList = &cobra.Command{
	Use:   "list <archive.zip>",
	Short: "List the entries of a ZIP archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
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
	r, err := zipcore.OpenSeekableReader(ctx, zipcore.AdaptReaderAt(f), info.Size(), zipcore.WithLogger(log.WithField("cmd", "list")))
	if err != nil {
		return err
	}

	for i := 0; i < r.Len(); i++ {
		se, err := r.Entry(i)
		if err != nil {
			return err
		}
		fmt.Printf("%10d %10d  %-8s  %s\n", se.CompressedSize, se.UncompressedSize, methodName(se.Method), se.Name.String())
	}
	return nil
}

func methodName(m zipcore.CompressionMethod) string {
	switch m {
	case zipcore.MethodStored:
		return "stored"
	case zipcore.MethodDeflate:
		return "deflate"
	case zipcore.MethodDeflate64:
		return "deflate64"
	case zipcore.MethodBzip2:
		return "bzip2"
	case zipcore.MethodLZMA:
		return "lzma"
	case zipcore.MethodZstd:
		return "zstd"
	case zipcore.MethodXZ:
		return "xz"
	default:
		return fmt.Sprintf("method(%d)", m)
	}
}
